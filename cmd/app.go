package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/database/mariadb"
	"github.com/kozaktomas/facewatch/internal/database/memory"
	"github.com/kozaktomas/facewatch/internal/database/postgres"
	"github.com/kozaktomas/facewatch/internal/embedding"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/logging"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/kozaktomas/facewatch/internal/watchlist"
)

// app holds the backends shared by all commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	events     database.EventRepository
	identities database.IdentityReader
	files      storage.FileStore
	detector   facematch.Detector
	provider   watchlist.ReferenceProvider
	store      *watchlist.Store
	matcher    *facematch.Matcher
	closers    []io.Closer
}

// newApp connects the database, artifact store and embedding service and
// creates an empty watchlist store. Call Close when done.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := logging.Init(cfg.Log)

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: m}
	if err := a.openDatabase(ctx); err != nil {
		return nil, err
	}

	files, err := storage.New(cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open artifact storage: %w", err)
	}
	a.files = files

	metric, err := facematch.ParseMetric(cfg.Matching.Metric)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.matcher = facematch.NewMatcher(metric, cfg.Matching.UseIndex)
	a.detector = embedding.NewClient(cfg.Embedding.URL)

	provider, err := a.referenceProvider()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.provider = provider
	a.store = watchlist.NewStore(provider, a.detector, watchlist.Options{
		Metric:     metric,
		BuildIndex: cfg.Matching.UseIndex,
		Logger:     logger,
		OnReload: func(r watchlist.ReloadReport) {
			m.Watchlist.ObserveReload(r.Identities, len(r.Skipped), r.Duration)
		},
	})
	return a, nil
}

func (a *app) openDatabase(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case "", "postgres":
		if a.cfg.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable is required")
		}
		pool, err := postgres.Open(ctx, &a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, pool)
		a.events = postgres.NewEventRepository(pool)
		a.identities = postgres.NewIdentityRepository(pool)
	case "mariadb":
		if a.cfg.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable is required")
		}
		pool, err := mariadb.Open(ctx, &a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		a.closers = append(a.closers, pool)
		repo := mariadb.NewEventRepository(pool)
		a.events = repo
		a.identities = repo
	case "memory":
		a.logger.Warn("using in-memory event storage, events are lost on exit")
		a.events = memory.NewEventRepository()
		a.identities = memory.NewIdentityStore()
	default:
		return fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
	a.logger.Info("database ready", "driver", a.cfg.Database.Driver)
	return nil
}

func (a *app) referenceProvider() (watchlist.ReferenceProvider, error) {
	switch a.cfg.Watchlist.Source {
	case "", "manifest":
		return watchlist.NewManifestProvider(a.cfg.Watchlist.ManifestPath, a.files), nil
	case "database":
		return watchlist.NewRepositoryProvider(a.identities, a.files), nil
	default:
		return nil, fmt.Errorf("unknown watchlist source %q", a.cfg.Watchlist.Source)
	}
}

// Close releases the database connections.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
