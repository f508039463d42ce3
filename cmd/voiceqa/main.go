// Package main provides the voiceqa CLI.
//
// Usage:
//
//	voiceqa <command> [flags]
//
// Commands:
//
//	run       - Run an interactive spoken Q&A session
//	sessions  - Inspect and manage stored sessions
//	export    - Export a session as a portable JSON document
//
// Configuration is environment driven; see internal/config for the
// variables and their defaults. With the default simulated engines a
// session runs end to end without any speech hardware.
package main

import (
	"fmt"
	"os"

	"voice-qa-session/cmd/voiceqa/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
