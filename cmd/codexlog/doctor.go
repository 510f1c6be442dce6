package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codexlog/internal/config"
	"codexlog/internal/index"
	"codexlog/internal/logging"
	"codexlog/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify root, DB, FTS sync, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			root, source := cfg.RootInfo()
			fmt.Println("=== Root ===")
			if err := scan.CheckRoot(root); err != nil {
				fmt.Printf("  %s (from %s): NOT USABLE: %v\n", root, source, err)
			} else {
				fmt.Printf("  %s (from %s): OK\n", root, source)
				files, err := scan.Scan(root, logging.New(logLevel))
				if err != nil {
					fmt.Printf("  scan error: %v\n", err)
				} else {
					fmt.Printf("  Transcript files: %d\n", len(files))
				}
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'codexlog index' first)")
				return nil
			}

			db, err := index.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			sessions, err := db.SessionCount()
			if err != nil {
				return fmt.Errorf("count sessions: %w", err)
			}
			messages, err := db.MessageCount()
			if err != nil {
				return fmt.Errorf("count messages: %w", err)
			}
			fmt.Printf("  Sessions: %d\n", sessions)
			fmt.Printf("  Messages: %d\n", messages)

			fmt.Println("\n=== FTS5 ===")
			ftsCount, err := db.FTSCount()
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else if ftsCount == messages {
				fmt.Printf("  Entries: %d OK (synced)\n", ftsCount)
			} else {
				fmt.Printf("  Entries: %d MISMATCH (messages=%d)\n", ftsCount, messages)
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				fmt.Printf("\n=== DB Size: %.1f MB ===\n", float64(info.Size())/1024/1024)
			}
			return nil
		},
	}
}
