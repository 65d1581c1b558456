package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/caching"
	"marketplace/internal/common"
	"marketplace/internal/config"
	"marketplace/internal/handlers"
	"marketplace/internal/jobs/background"
	"marketplace/internal/logger"
	"marketplace/internal/metrics"
	"marketplace/internal/repositories"
	"marketplace/internal/repositories/memory"
	"marketplace/internal/services"
	"marketplace/pkg/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const (
	serviceName = "marketplace"
	version     = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "marketplace: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.LogConfig{
		Level:       cfg.Logger.Level,
		Environment: cfg.Server.AppEnv,
		ServiceName: serviceName,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := map[string]handlers.Pinger{}

	var store repositories.Store
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	default:
		pool, err := database.NewPool(ctx, cfg.Database.URL, log)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
		}
		store = repositories.NewPgStore(pool)
		deps["database"] = pool
	}

	var cache caching.CacheService
	if cfg.Redis.Enabled {
		client := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		defer client.Close()
		cache = caching.NewRedisCacheService(client)
		deps["redis"] = cache
	} else {
		cache = caching.NewNoopCacheService()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry, serviceName)

	validator := common.NewValidator()
	guard := services.NewGuard()
	ratings := services.NewRatingService(store, cache, m, log)
	catalog := services.NewCatalogService(store, guard, validator, cache, cfg.Redis.ProductTTL, log)
	reviews := services.NewReviewService(store, guard, validator, ratings, log)
	users := services.NewUserService(store, validator, log)

	scheduler, err := background.NewJobScheduler(ratings, cfg.Jobs.RatingReconcileInterval, log)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}()

	e := handlers.NewRouter(handlers.Services{
		Catalog: catalog,
		Reviews: reviews,
		Users:   users,
		Health:  handlers.NewHealthHandlers(deps, scheduler, version),
	}, cfg.JWT.Secret, m, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", addr), zap.String("version", version),
			zap.String("store", cfg.Database.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
