package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"codexlog/internal/search"
)

const (
	colorReset   = "\033[0m"
	colorBoldRed = "\033[1;31m"
	colorCyan    = "\033[1;36m"
	colorDim     = "\033[2m"
)

func searchCmd() *cobra.Command {
	var workspace string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across indexed transcripts",
		Long: `Search indexed transcripts using FTS5 match syntax. Results are
grouped by workspace; each line is TSV: path, turn, role, timestamp, snippet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tty := term.IsTerminal(int(os.Stdout.Fd()))
			opts := search.Options{
				Query:     args[0],
				Workspace: workspace,
				Limit:     limit,
			}
			if tty {
				opts.MarkStart = colorBoldRed
				opts.MarkEnd = colorReset
			}

			groups, err := search.Search(a.db, opts)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, g := range groups {
				header := fmt.Sprintf("%s (%d matches)", g.Workspace.Cwd, g.MatchCount)
				if g.Workspace.GithubSlug != "" {
					header += " [" + g.Workspace.GithubSlug + "]"
				}
				if tty {
					header = colorCyan + header + colorReset
				}
				fmt.Println(header)

				for _, r := range g.Results {
					snippet := strings.ReplaceAll(r.Snippet, "\t", " ")
					snippet = strings.ReplaceAll(snippet, "\n", " ")
					ts := r.Timestamp
					if tty {
						ts = colorDim + ts + colorReset
					}
					fmt.Printf("%s\t%d\t%s\t%s\t%s\n",
						r.SessionPath, r.TurnID, r.Role, ts, snippet)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Restrict to one workspace (cwd)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max results")
	return cmd
}
