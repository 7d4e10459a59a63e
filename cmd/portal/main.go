// Command portal is the terminal client of the civil-registry portal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/registry-portal/internal/alert"
	"github.com/nhle/registry-portal/internal/api"
	"github.com/nhle/registry-portal/internal/app"
	"github.com/nhle/registry-portal/internal/auth"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/realtime"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/session"
	"github.com/nhle/registry-portal/internal/store"
	appsync "github.com/nhle/registry-portal/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "portal:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := report.NewRecorder(50, report.NewLogReporter(logger))

	slots, closeSlots, err := openSlots(cfg)
	if err != nil {
		return err
	}
	defer closeSlots()

	feed, err := openFeed(cfg, logger)
	if err != nil {
		return err
	}
	defer feed.close()

	bridge := app.NewBridge()
	defer bridge.Close()

	sessions, err := session.NewStore(session.StoreOptions{
		Slots:     store.NewBroadcastingSlots(slots, feed.feed),
		Navigator: bridge,
		Reporter:  errs,
		Logger:    logger.With(slog.String("component", "session")),
	})
	if err != nil {
		return err
	}
	synchronizer := session.NewSynchronizer(sessions, feed.feed)
	defer synchronizer.Close()

	client := api.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSec)*time.Second, sessions.Token)

	core := &app.Core{
		Store:        sessions,
		Sync:         synchronizer,
		Auth:         auth.NewService(client, sessions, errs, logger.With(slog.String("component", "auth"))),
		Poller:       appsync.New(client, errs, logger.With(slog.String("component", "notifications"))),
		Errors:       errs,
		PollInterval: cfg.PollInterval(),
		Logger:       logger,
		Config:       cfg,
		ConfigPath:   *configPath,
	}

	if cfg.Alerts.Enabled {
		fs, err := realtime.NewFirestoreClient(ctx, cfg.Alerts.ProjectID, cfg.Alerts.CredentialsFile)
		if err != nil {
			return err
		}
		defer fs.Close()

		alertLogger := logger.With(slog.String("component", "alerts"))
		core.Alerts = alert.NewWatcher(
			realtime.NewFirestoreFeed(fs, cfg.Alerts.Collection, alertLogger),
			alert.Options{
				Freshness:    cfg.FreshnessWindow(),
				DismissAfter: cfg.DismissAfter(),
				Reporter:     errs,
				Logger:       alertLogger,
			},
		)
		defer core.Alerts.Stop()
	}

	logger.Info("starting portal client",
		slog.String("api", cfg.API.BaseURL),
		slog.String("session_backend", cfg.Session.Backend),
		slog.String("sync_backend", cfg.Sync.Backend),
		slog.Bool("alerts", cfg.Alerts.Enabled),
	)

	g, gctx := errgroup.WithContext(ctx)

	if feed.run != nil {
		g.Go(func() error {
			return feed.run(gctx)
		})
	}

	program := tea.NewProgram(app.New(core, bridge), tea.WithAltScreen(), tea.WithContext(gctx))
	g.Go(func() error {
		defer cancel()

		final, err := program.Run()
		bridge.Close()
		if m, ok := final.(app.Model); ok {
			m.Close()
		}
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	return g.Wait()
}
