package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codexlog/internal/search"
)

func workspacesCmd() *cobra.Command {
	var sortBy string

	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "List workspaces with session counts and git context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			workspaces, err := search.Workspaces(a.db, sortBy)
			if err != nil {
				return err
			}

			for _, w := range workspaces {
				slug := w.GithubSlug
				if slug == "" {
					slug = "-"
				}
				branch := w.GitBranch
				if branch == "" {
					branch = "-"
				}
				fmt.Printf("%s\t%d\t%s\t%s\t%s\n",
					w.Cwd, w.SessionCount, w.LastSeen, branch, slug)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", search.SortRecent, "Sort order (recent/count/path)")
	return cmd
}
