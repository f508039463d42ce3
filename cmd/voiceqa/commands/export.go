package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voice-qa-session/internal/models"
)

var (
	exportOutputFile string
	exportTitle      string
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session as a portable JSON document",
	Long: `Export a stored session, including answers, statuses and progress
summary, as a JSON document. Without a session id the current session
is exported. The document can be re-imported with 'run -f' to
continue the session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		var sess *models.Session
		if len(args) == 1 {
			sess, err = st.Load(ctx, args[0])
		} else {
			sess, err = st.LoadCurrent(ctx)
			if err == nil && sess == nil {
				err = fmt.Errorf("no current session to export")
			}
		}
		if err != nil {
			return err
		}

		doc, err := models.Export(sess, exportTitle)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')

		if exportOutputFile == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(exportOutputFile, data, 0644); err != nil {
			return err
		}
		fmt.Printf("Exported session %s to %s\n", sess.ID, exportOutputFile)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputFile, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "title recorded in the export document")
	rootCmd.AddCommand(exportCmd)
}
