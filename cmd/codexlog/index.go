package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexlog/internal/index"
)

func indexCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Incrementally index the transcript root",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			root, source := a.cfg.RootInfo()
			fmt.Fprintf(os.Stderr, "Indexing %s (root from %s)\n", root, source)

			r := index.NewReindexer(a.db, a.logger)
			var sum index.Summary
			if rebuild {
				sum, err = r.Rebuild(root)
			} else {
				sum, err = r.Run(root)
			}
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Done. %s\n", sum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Drop the index and rebuild from scratch")
	return cmd
}
