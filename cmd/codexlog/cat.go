package main

import (
	"os"

	"github.com/spf13/cobra"

	"codexlog/internal/scan"
	"codexlog/internal/search"
)

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <id-or-path>",
		Short: "Dump a raw transcript to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rel := args[0]
			if path, ok, err := search.ResolveSession(a.db, rel, ""); err != nil {
				return err
			} else if ok {
				rel = path
			}

			root, _ := a.cfg.RootInfo()
			raw, err := scan.ReadSessionFile(root, rel)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(raw)
			return err
		},
	}
}
