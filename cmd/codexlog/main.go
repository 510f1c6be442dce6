package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:     "codexlog",
		Short:   "Index and search Codex conversation transcripts",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug/info/warn/error)")

	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(workspacesCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(catCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
