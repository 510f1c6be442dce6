package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codexlog/internal/open"
	"codexlog/internal/search"
)

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <id-or-path>",
		Short: "Open a transcript in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path, ok, err := search.ResolveSession(a.db, args[0], "")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no session matches %q", args[0])
			}

			root, _ := a.cfg.RootInfo()
			return open.Transcript(root, path)
		},
	}
}
