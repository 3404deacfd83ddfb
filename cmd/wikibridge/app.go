package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wikibridge/pkg/config"
	"wikibridge/pkg/cron"
	"wikibridge/pkg/db"
	"wikibridge/pkg/entitytype"
	"wikibridge/pkg/logging"
	"wikibridge/pkg/queue"
	"wikibridge/pkg/request"
	"wikibridge/pkg/searchhost"
	"wikibridge/pkg/searchsync"
	"wikibridge/pkg/store"
	"wikibridge/pkg/tracker"
	"wikibridge/pkg/version"
)

type app struct {
	cfg       *config.Config
	db        *db.DB
	store     *store.SQLiteStore
	tracker   *tracker.Tracker
	registry  *entitytype.Registry
	types     *entitytype.Service
	search    *searchhost.Manager
	retrackQ  *queue.Queue
	indexQ    *queue.Queue
	scheduler *cron.Scheduler
	jobs      []*cron.QueueJob
}

// withApp loads the config, sets up logging and the app, runs fn and
// tears everything down again.
func withApp(ctx context.Context, configPath string, fn func(*app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("wikibridge started", "version", version.Version)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.db.Close()

	return fn(a)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.NewSQLiteStore(dbConn)
	tr := tracker.New()

	baseDelay := time.Duration(cfg.Request.Backoff.BaseDelay)
	reqClient := request.New(tr, request.Options{
		Timeout:   time.Duration(cfg.Request.Timeout),
		Retries:   cfg.Request.Retries,
		BaseDelay: baseDelay,
		UserAgent: cfg.Request.UserAgent,
		Backoff:   request.NewProviderBackoff(baseDelay, time.Duration(cfg.Request.Backoff.MaxDelay)),
		Logger:    logging.RequestLogger,
	})

	visibility := time.Duration(cfg.Queue.Visibility)
	a := &app{
		cfg:      cfg,
		db:       dbConn,
		store:    st,
		tracker:  tr,
		retrackQ: queue.New(dbConn, queue.RetrackQueue, visibility),
		indexQ:   queue.New(dbConn, queue.IndexQueue, visibility),
	}

	a.registry = entitytype.NewRegistry(st, reqClient, slog.With("component", "storage_client"))
	a.search = searchhost.NewManager(st, a.registry, a.indexQ, searchhost.Options{
		Logger: slog.With("component", "search"),
	})
	detector := searchsync.NewChangeDetector(a.search, a.search, a.retrackQ, slog.With("component", "change_detector"))
	a.types = entitytype.NewService(st, a.registry, detector, slog.With("component", "entity_types"))

	if err := a.seed(ctx); err != nil {
		dbConn.Close()
		return nil, err
	}

	syncLog := slog.With("component", "searchsync")
	runnerOpts := queue.RunnerOptions{
		TimeBudget:  time.Duration(cfg.Queue.TimeBudget),
		MaxAttempts: cfg.Queue.MaxAttempts,
		Tracker:     tr,
		Logger:      slog.With("component", "queue"),
	}
	a.jobs = []*cron.QueueJob{
		cron.NewQueueJob(queue.NewRunner(a.retrackQ, searchsync.NewRetrackWorker(a.search, syncLog), runnerOpts)),
		cron.NewQueueJob(queue.NewRunner(a.indexQ, searchsync.NewIndexWorker(a.registry, a.search, syncLog), runnerOpts)),
	}
	a.scheduler = cron.NewScheduler(time.Duration(cfg.Queue.Interval), st, slog.With("component", "cron"))
	for _, j := range a.jobs {
		a.scheduler.AddJob(j)
	}
	return a, nil
}

// seed applies configured indexes, then entity types. Indexes go first so
// a new entity type list already reaches them.
func (a *app) seed(ctx context.Context) error {
	if err := a.search.Seed(ctx, a.cfg.Indexes); err != nil {
		return err
	}
	indexes, err := a.store.ListIndexes(ctx)
	if err != nil {
		return err
	}
	a.search.SetEnabled(len(indexes) > 0)

	return a.types.Seed(ctx, a.cfg.EntityTypes, a.store)
}
