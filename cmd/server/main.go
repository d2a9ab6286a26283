package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/SlpAus/dragon-duel-backend/api"
	"github.com/SlpAus/dragon-duel-backend/internal/archive"
	"github.com/SlpAus/dragon-duel-backend/internal/battle"
	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/eventlog"
	"github.com/SlpAus/dragon-duel-backend/internal/notify"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/config"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/database"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/health"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/shutdown"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/startup"
	"github.com/SlpAus/dragon-duel-backend/internal/query"
	"github.com/SlpAus/dragon-duel-backend/internal/ratelimit"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/SlpAus/dragon-duel-backend/pkg/token"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("load config: " + err.Error())
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		panic("build logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	rdb, err := database.OpenRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()
	db, err := database.OpenSQL(cfg.Database)
	if err != nil {
		return err
	}
	status := database.NewStatus(logger)

	store := archive.NewStore(db)
	gateway := record.NewGateway(rdb, status, record.Options{
		Retries:  cfg.Battle.CommitRetries,
		TTL:      cfg.Battle.RecordTTL,
		Location: cfg.Battle.Location(),
	}, logger)
	templates := combatant.NewTemplateStore(rdb, logger)
	boot := startup.New(rdb, store, gateway, templates, logger)

	checker := health.NewChecker(health.RedisRunID(rdb), boot.RebuildCache, status, logger)
	if err := checker.Initialize(ctx); err != nil {
		return err
	}
	if err := boot.Initialize(ctx); err != nil {
		return err
	}
	checker.Check(ctx)

	gracefulMgr := lifecycle.NewManager("graceful", logger)
	forcefulMgr := lifecycle.NewManager("forceful", logger)
	spawn := func(name string, fn func(h *lifecycle.Handle)) error {
		h, err := gracefulMgr.NewServiceHandle(name)
		if err != nil {
			return err
		}
		go fn(h)
		return nil
	}

	appender := eventlog.NewAppender(rdb, eventlog.Options{
		MaxLen:        cfg.Battle.EventLogMaxLen,
		QueueSize:     cfg.Battle.EventQueueSize,
		AppendTimeout: cfg.Battle.EventAppendTimeout,
	}, logger)
	registry := battle.NewRegistry(gateway, gateway, templates, appender, battle.Options{
		CommitTimeout: cfg.Battle.CommitTimeout,
	}, logger)
	signer, err := token.NewSigner(cfg.Battle.TokenSecret)
	if err != nil {
		return err
	}

	// 事件写入器在优雅停机时排空队列，强制停机时放弃剩余事件
	appenderGraceful, err := gracefulMgr.NewServiceHandle("event-appender")
	if err != nil {
		return err
	}
	appenderForceful, err := forcefulMgr.NewServiceHandle("event-appender")
	if err != nil {
		return err
	}
	go appender.Run(appenderGraceful, appenderForceful)

	reconciler := archive.NewReconciler(rdb, store, status, cfg.Archive.ReconcileBatch, logger)
	broadcaster := notify.NewBroadcaster()
	subscriber := notify.NewSubscriber(rdb, logger)
	subscriber.Handle("archive", reconciler.HandleNotification)
	subscriber.Handle("broadcast", broadcaster.Publish)

	for _, w := range []struct {
		name string
		fn   func(h *lifecycle.Handle)
	}{
		{"notify-subscriber", subscriber.Run},
		{"health-checker", func(h *lifecycle.Handle) { checker.Run(h, cfg.Health.CheckInterval) }},
		{"archive-reconciler", func(h *lifecycle.Handle) { reconciler.Run(h, cfg.Archive.ReconcileInterval) }},
		{"battle-janitor", func(h *lifecycle.Handle) {
			registry.RunJanitor(h, cfg.Battle.JanitorInterval, cfg.Battle.SessionIdleTimeout)
		}},
	} {
		if err := spawn(w.name, w.fn); err != nil {
			return err
		}
	}

	queries := query.NewService(rdb, store, logger)
	router := api.NewRouter(cfg.Server, api.Dependencies{
		Battles:     battle.NewHandler(registry, signer),
		Queries:     query.NewHandler(queries),
		Broadcaster: broadcaster,
		Health:      checker,
		Registry:    registry,
		StartLimit: ratelimit.New(rdb, status, ratelimit.Options{
			Scope:  "battle_start",
			Window: cfg.Battle.StartWindow,
			Max:    cfg.Battle.StartLimit,
		}, logger),
	}, logger)
	server := &http.Server{Addr: cfg.Server.Address, Handler: router}
	server.RegisterOnShutdown(broadcaster.Close)

	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr, logger)
	coordinator.Finally("retry pending saves", func(ctx context.Context) error {
		if n := registry.RetryPending(ctx); n > 0 {
			return errors.New("some finished battles were not saved")
		}
		return nil
	})
	coordinator.Finally("archive reconcile", func(ctx context.Context) error {
		_, err := reconciler.Reconcile(ctx)
		return err
	})

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	coordinator.ListenForSignalsAndShutdown(server)
	return nil
}
