package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codexlog/internal/search"
)

func sessionsCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse indexed sessions as a year/month/day tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			root, _ := a.cfg.RootInfo()
			tree, err := search.SessionTree(a.db, root, workspace)
			if err != nil {
				return err
			}

			for _, y := range tree.Years {
				for _, m := range y.Months {
					for _, d := range m.Days {
						label := y.Year + "-" + m.Month + "-" + d.Day
						if y.Year == "" {
							label = "(undated)"
						}
						fmt.Println(label)
						for _, f := range d.Files {
							preview := f.Preview
							if preview == "" {
								preview = "-"
							}
							fmt.Printf("  %s\t%d turns\t%s\n", f.Path, f.TurnCount, preview)
						}
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Restrict to one workspace (cwd)")
	return cmd
}
