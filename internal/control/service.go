package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/domainwatch/internal/activity"
	"github.com/vietddude/domainwatch/internal/api"
	"github.com/vietddude/domainwatch/internal/catalog"
	"github.com/vietddude/domainwatch/internal/core/config"
	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/freshness/dedup"
	"github.com/vietddude/domainwatch/internal/freshness/scheduler"
	"github.com/vietddude/domainwatch/internal/freshness/swr"
	"github.com/vietddude/domainwatch/internal/freshness/ttl"
	"github.com/vietddude/domainwatch/internal/infra/fetch"
	redisclient "github.com/vietddude/domainwatch/internal/infra/redis"
	"github.com/vietddude/domainwatch/internal/infra/storage"
	"github.com/vietddude/domainwatch/internal/infra/storage/memory"
	"github.com/vietddude/domainwatch/internal/infra/storage/postgres"
	"github.com/vietddude/domainwatch/internal/refresh"
)

// Service is the assembled application: catalog reloading, the SWR read
// API, the revalidation worker, and activity tracking, sharing one Redis
// connection and one storage backend.
type Service struct {
	cfg config.AppConfig
	log *slog.Logger

	db          *postgres.DB
	redisClient *redisclient.Client
	catalogs    *catalog.Store
	reloader    *catalog.Reloader
	tracker     *activity.Tracker
	worker      *refresh.Worker
	apiServer   *api.Server
}

// New creates a Service with all dependencies initialized.
func New(cfg config.AppConfig, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	// 1. Storage
	var (
		db        *postgres.DB
		snapshots storage.SnapshotRepository
		facts     storage.ProviderFactRepository
		actRepo   storage.ActivityRepository
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(cfg.Database.MigrationsDir); err != nil {
			return nil, err
		}
		snapshots = postgres.NewSnapshotRepo(db)
		facts = postgres.NewFactRepo(db)
		actRepo = postgres.NewActivityRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		snapshots = memory.NewSnapshotRepo(store)
		facts = memory.NewFactRepo(store)
		actRepo = memory.NewActivityRepo(store)
		log.Info("Using Memory storage")
	}

	// 2. Redis: locks, queue, activity counters
	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("redis is required: set redis.url")
	}
	redisClient, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}
	locks := redisclient.NewLockStore(redisClient)
	queue := redisclient.NewTaskQueue(redisClient)
	counters := redisclient.NewActivityStore(redisClient)

	// 3. Catalog
	catalogs := catalog.NewStore()
	var source catalog.Source
	if cfg.Catalog.Path != "" {
		source = catalog.FileSource{Path: cfg.Catalog.Path}
	} else {
		source = catalog.HTTPSource{URL: cfg.Catalog.URL}
	}
	reloader := catalog.NewReloader(source, catalogs, cfg.Catalog.ReloadInterval, log)

	// 4. Freshness machinery
	policy := ttl.NewPolicy(cfg.Freshness.TTL)

	curves := make(map[domain.Section]scheduler.Curve, len(cfg.Freshness.Decay))
	for name, curve := range cfg.Freshness.Decay {
		curves[domain.Section(name)] = curve
	}
	sched, err := scheduler.New(queue, curves, log)
	if err != nil {
		return nil, err
	}

	gate := dedup.New(locks, log, dedup.Options{
		FailClosed:   cfg.Dedup.FailClosed,
		PollInterval: cfg.Dedup.PollInterval,
		PollAttempts: cfg.Dedup.PollAttempts,
	})

	// 5. Refresh pipeline + worker
	var fetcher fetch.Fetcher = fetch.NewHTTPClient(cfg.Fetcher.URL, cfg.Fetcher.Timeout)
	fetcher = fetch.NewRetrying(fetcher, cfg.Fetcher.MaxRetries, cfg.Fetcher.BackoffBase)

	pipeline := refresh.NewPipeline(fetcher, catalogs, policy, snapshots, facts, log)
	worker := refresh.NewWorker(queue, gate, pipeline, sched, actRepo, policy, cfg.Worker, log)

	// 6. Activity tracking + API
	tracker := activity.NewTracker(counters, actRepo, cfg.Activity.FlushInterval, log)

	checks := map[string]api.HealthChecker{"redis": redisClient}
	if db != nil {
		checks["database"] = db
	}
	coordinator := swr.NewCoordinator(log)
	apiServer := api.NewServer(facts, snapshots, pipeline, coordinator, tracker, checks, cfg.Server, log)

	return &Service{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		catalogs:    catalogs,
		reloader:    reloader,
		tracker:     tracker,
		worker:      worker,
		apiServer:   apiServer,
	}, nil
}

// Start launches all background loops and the HTTP server. The initial
// catalog load is attempted once; a failure is not fatal, the reloader
// retries and everything classifies null until a snapshot lands.
func (s *Service) Start(ctx context.Context) error {
	if err := s.reloader.LoadOnce(ctx); err != nil {
		s.log.Error("Initial catalog load failed, serving null classifications until reload", "error", err)
	}

	go s.reloader.Run(ctx)
	go s.worker.Start(ctx)
	go s.tracker.Start(ctx)
	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	go func() {
		s.log.Info("API server listening", "port", s.cfg.Server.Port)
		if err := s.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server failed", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the service down.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error
	if err := s.apiServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api shutdown: %w", err))
	}
	if err := s.redisClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}
