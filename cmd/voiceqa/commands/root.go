// Package commands implements the voiceqa CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voiceqa",
	Short: "Spoken Q&A session runner",
	Long: `voiceqa runs spoken question-and-answer sessions: each question is
read aloud, an acknowledgment cue plays, and the spoken answer is
captured with silence endpointing. Voice commands (next, previous,
skip, jump to <n>, repeat, summary, clear answer, pause, resume)
steer the session; progress is persisted after every change and a
session survives an interrupt or crash.

Engines are selected by environment: RECOGNIZER_PROVIDER (sim,
google) and SYNTH_PROVIDER (sim, ws). The default simulated engines
need no hardware and make for a self-contained demo.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
