package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codexlog/internal/search"
)

func resolveCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a session id or path fragment to a stored path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path, ok, err := search.ResolveSession(a.db, args[0], workspace)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no session matches %q", args[0])
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Restrict to one workspace (cwd)")
	return cmd
}
