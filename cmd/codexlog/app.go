package main

import (
	"fmt"
	"log/slog"

	"codexlog/internal/config"
	"codexlog/internal/index"
	"codexlog/internal/logging"
)

// app bundles the per-invocation service state: resolved config, the
// open store handle, and the logger. Commands acquire it once and
// release it with Close.
type app struct {
	cfg    *config.Config
	db     *index.DB
	logger *slog.Logger
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := index.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	return &app{
		cfg:    cfg,
		db:     db,
		logger: logging.New(logLevel),
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
}
