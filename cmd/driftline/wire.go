// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/driftline-dev/driftline/internal/backend"
	"github.com/driftline-dev/driftline/internal/catalog"
	"github.com/driftline-dev/driftline/internal/classify"
	"github.com/driftline-dev/driftline/internal/config"
	"github.com/driftline-dev/driftline/internal/queue"
	"github.com/driftline-dev/driftline/internal/secrets"
	"github.com/driftline-dev/driftline/internal/server"
	"github.com/driftline-dev/driftline/internal/store"
	_ "github.com/driftline-dev/driftline/internal/store/sqlite" // register sqlite backend
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// cleanupInterval is how often synced signals past their max age are evicted.
const cleanupInterval = time.Hour

// Engine holds all wired subsystems and manages their lifecycle.
type Engine struct {
	Server  *server.Server
	Signals store.SignalStore
	Queue   *queue.Queue
	Catalog *catalog.FileSource
	Backend *backend.Client

	sched         queue.Scheduler
	cancelCleanup queue.CancelFunc
	cleanupMaxAge time.Duration
}

// WireEngine creates all subsystems and wires them together.
func WireEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return nil, dlerr.Wrap(err, dlerr.CodeCLISetupFailure, "resolving data directory")
		}
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, dlerr.Errorf(dlerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Signal store.
	signals, err := store.NewSignalStore(&store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
	if err != nil {
		return nil, dlerr.Errorf(dlerr.CodeCLISetupFailure, "creating signal store: %w", err)
	}

	// 2. Catalog source.
	catalogPath := cfg.Catalog.Path
	if catalogPath == "" {
		catalogPath = filepath.Join(dataDir, "catalog.yaml")
	}
	source, err := catalog.NewFileSource(catalogPath)
	if err != nil {
		_ = signals.Close()
		return nil, dlerr.Errorf(dlerr.CodeCLISetupFailure, "loading catalog: %w", err)
	}

	// 3. Backend client, when a remote is configured.
	var client *backend.Client
	if cfg.Backend.BaseURL != "" {
		token, err := secrets.ResolveToken(secrets.NewKeyringStore(), cfg.Backend.Token)
		if err != nil {
			slog.Warn("could not resolve backend token, continuing without auth", "error", err)
		}
		client, err = backend.New(backend.Config{
			BaseURL:    cfg.Backend.BaseURL,
			APIToken:   token,
			Timeout:    cfg.Backend.Timeout,
			MaxRetries: cfg.Backend.MaxRetries,
			Cooldown:   cfg.Backend.Cooldown,
		}, slog.Default())
		if err != nil {
			_ = signals.Close()
			return nil, dlerr.Errorf(dlerr.CodeCLISetupFailure, "creating backend client: %w", err)
		}

		// Overlay backend catalog definitions (evidence scores, new spaces).
		// Failure is not fatal: the local catalog still works offline.
		if cfg.Catalog.RefreshFromBackend {
			if remote, err := client.FetchCatalog(ctx); err != nil {
				slog.Warn("catalog refresh from backend failed, using local catalog", "error", err)
			} else {
				source.Apply(remote)
				slog.Info("catalog refreshed from backend")
			}
		}
	} else {
		slog.Info("no backend configured, running offline-only")
	}

	// 4. Classification pipeline.
	pipeline := classify.NewPipeline(source, signals, classify.Options{
		Threshold:         cfg.Classify.Threshold,
		StoreUnclassified: cfg.Classify.StoreUnclassified,
	}, slog.Default())

	// 5. Sync queue. Without a backend the queue never drains, but pending
	// work survives in the store until one is configured.
	sched := queue.NewClockScheduler()
	var qBackend queue.Backend
	if client != nil {
		qBackend = client
	} else {
		qBackend = offlineBackend{}
	}
	q := queue.New(signals, qBackend, sched, queue.Options{
		BatchSize:     cfg.Sync.BatchSize,
		ScheduleDelay: cfg.Sync.ScheduleDelay,
		Interval:      cfg.Sync.Interval,
		InitialDelay:  cfg.Sync.InitialDelay,
	}, slog.Default())

	// 6. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.AllowedOrigins,
	})
	if err != nil {
		_ = signals.Close()
		return nil, dlerr.Errorf(dlerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	var reporter server.HealthReporter
	if client != nil {
		reporter = client
	}
	srv.RegisterServices(&server.Services{
		Pipeline: pipeline,
		Signals:  signals,
		Queue:    q,
		Catalog:  source,
		Bands:    cfg.States.Bands(),
		Backend:  reporter,
	})

	return &Engine{
		Server:        srv,
		Signals:       signals,
		Queue:         q,
		Catalog:       source,
		Backend:       client,
		sched:         sched,
		cleanupMaxAge: cfg.Cleanup.MaxAge,
	}, nil
}

// Start arms the sync queue and cleanup timers, then runs the HTTP server
// until the context is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.Queue.Init()
	e.cancelCleanup = e.sched.Every(cleanupInterval, func() {
		e.runCleanup(context.Background())
	})
	e.runCleanup(ctx)

	return e.Server.Start(ctx)
}

func (e *Engine) runCleanup(ctx context.Context) {
	if e.cleanupMaxAge <= 0 {
		return
	}
	removed, err := e.Signals.CleanupOldSignals(ctx, e.cleanupMaxAge)
	if err != nil {
		slog.Warn("signal cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("evicted old synced signals", "count", removed)
	}
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	e.Queue.Stop()
	if e.cancelCleanup != nil {
		e.cancelCleanup()
	}

	var errs []error
	if err := e.Signals.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// offlineBackend rejects every batch without touching the network, so
// signals stay pending until a real backend is configured.
type offlineBackend struct{}

func (offlineBackend) SyncSignals(context.Context, []*store.Signal) (*queue.SyncResult, error) {
	return nil, dlerr.New(dlerr.CodeBackendUpstreamFailure, "no backend configured")
}
