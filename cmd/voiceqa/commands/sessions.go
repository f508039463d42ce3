package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voice-qa-session/internal/config"
	"voice-qa-session/internal/observability/logging"
	"voice-qa-session/internal/store"
)

// openStore opens the configured session store for a management command.
func openStore() (store.Store, error) {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.Observability.LogLevel, Format: "console", TimeFormat: "15:04:05"})
	return store.OpenBadger(store.Options{
		Dir:      cfg.Store.Dir,
		InMemory: cfg.Store.InMemory,
	}, logging.WithComponent("store"))
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		all, err := st.ListAll(context.Background())
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("No stored sessions.")
			return nil
		}

		current, err := st.LoadCurrent(context.Background())
		if err != nil {
			return err
		}
		for _, s := range all {
			sum := s.Summarize()
			marker := " "
			if current != nil && current.ID == s.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %d questions (%d answered, %d skipped, %d pending)\n",
				marker, s.ID, s.Timestamp.Format("2006-01-02 15:04"),
				sum.TotalQuestions, sum.Answered, sum.Skipped, sum.Pending)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete one stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.ClearAll(context.Background()); err != nil {
			return err
		}
		fmt.Println("Cleared session history.")
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}
