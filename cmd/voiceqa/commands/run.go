package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voice-qa-session/internal/app"
	"voice-qa-session/internal/config"
	"voice-qa-session/internal/models"
	"voice-qa-session/internal/service/turn"
)

var (
	runQuestionsFile string
	runResume        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive spoken Q&A session",
	Long: `Run a spoken Q&A session over a question list.

The questions file is either a plain JSON array of
{"question": "...", "id": "...", ...context} objects, or a previously
exported session document, in which case answers and statuses are
carried over and the session continues where it left off.

Examples:
  voiceqa run -f questions.json
  voiceqa run --resume`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runResume && runQuestionsFile == "" {
			return fmt.Errorf("questions file is required, use -f flag (or --resume)")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg := config.Load()
		application := app.New(cfg)
		notifier := turn.NotifierFunc(func(text string) {
			fmt.Println(">>", text)
		})
		if err := application.Start(ctx, notifier); err != nil {
			return err
		}
		defer application.Shutdown()

		sess, err := loadSession(ctx, application)
		if err != nil {
			return err
		}

		if err := application.Machine.Start(ctx, sess); err != nil {
			return err
		}

		// Run until the session completes or the process is interrupted.
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if application.Machine.State() == turn.StateInactive {
					printProgress(application.Machine.Snapshot())
					return nil
				}
			}
		}
	},
}

func loadSession(ctx context.Context, application *app.Application) (*models.Session, error) {
	if runResume {
		sess, err := application.Store.LoadCurrent(ctx)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("no stored session to resume")
		}
		fmt.Printf("Resuming session %s at question %d of %d\n",
			sess.ID, sess.CurrentIndex+1, len(sess.Questions))
		return sess, nil
	}

	data, err := os.ReadFile(runQuestionsFile)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	imp, err := models.ParseImport(data)
	if err != nil {
		return nil, err
	}

	sess := models.NewSession(imp.Questions)
	for id, st := range imp.States {
		sess.States[id] = st
	}
	fmt.Printf("Starting session with %d questions\n", len(sess.Questions))
	return sess, nil
}

func printProgress(sess *models.Session) {
	if sess == nil {
		return
	}
	sum := sess.Summarize()
	fmt.Printf("Session %s: %d questions, %d answered, %d skipped, %d pending\n",
		sess.ID, sum.TotalQuestions, sum.Answered, sum.Skipped, sum.Pending)
}

func init() {
	runCmd.Flags().StringVarP(&runQuestionsFile, "file", "f", "", "questions file (JSON array or exported session)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "resume the stored current session")
	rootCmd.AddCommand(runCmd)
}
