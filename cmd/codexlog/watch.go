package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"codexlog/internal/index"
	"codexlog/internal/watch"
)

func watchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reindex continuously as transcripts change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			root, source := a.cfg.RootInfo()
			fmt.Fprintf(os.Stderr, "Watching %s (root from %s)\n", root, source)

			r := index.NewReindexer(a.db, a.logger)

			// catch up once before watching
			if sum, err := r.Run(root); err != nil {
				return fmt.Errorf("initial index: %w", err)
			} else {
				fmt.Fprintf(os.Stderr, "Indexed. %s\n", sum)
			}

			reindex := func() error {
				sum, err := r.Run(root)
				if errors.Is(err, index.ErrReindexRunning) {
					return nil
				}
				if err != nil {
					return err
				}
				if sum.Updated > 0 || sum.Removed > 0 {
					a.logger.Info("reindexed", "summary", sum.String())
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			w := watch.New(root, debounce, a.logger, reindex)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before reindexing")
	return cmd
}
