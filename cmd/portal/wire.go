package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/registry-portal/internal/changefeed"
	"github.com/nhle/registry-portal/internal/credential"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/store"
)

// initLogger writes JSON logs to the configured file; the terminal belongs
// to the TUI.
func initLogger(cfg model.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("log.level: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, func() { f.Close() }, nil
}

// openSlots opens the configured session slot storage.
func openSlots(cfg *model.AppConfig) (store.SlotStore, func(), error) {
	switch cfg.Session.Backend {
	case model.SessionBackendKeyring:
		ring, err := credential.Open(cfg.Session.KeyringDir)
		if err != nil {
			return nil, nil, err
		}
		return credential.NewKeyringSlots(ring), func() {}, nil

	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Session.DBPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := store.NewSQLiteStore(cfg.Session.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}
}

// feedHandle is the selected change feed and its optional pump.
type feedHandle struct {
	feed  changefeed.Feed
	run   func(ctx context.Context) error
	close func()
}

func openFeed(cfg *model.AppConfig, logger *slog.Logger) (*feedHandle, error) {
	logger = logger.With(slog.String("component", "changefeed"), slog.String("backend", cfg.Sync.Backend))

	switch cfg.Sync.Backend {
	case model.SyncBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Sync.RedisAddr})
		f := changefeed.NewRedisFeed(client, cfg.Sync.RedisChannel, logger)
		return &feedHandle{feed: f, run: f.Run, close: func() { client.Close() }}, nil

	case model.SyncBackendFile:
		f := changefeed.NewFileFeed(cfg.Session.DBPath, logger)
		return &feedHandle{feed: f, run: f.Run, close: func() {}}, nil

	default:
		// Single process: only windows of this process share the bus.
		ep := changefeed.NewBus().Endpoint()
		return &feedHandle{feed: ep, close: ep.Close}, nil
	}
}
