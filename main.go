package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/RedDead11/Todo-App/api"
	"github.com/RedDead11/Todo-App/config"
	"github.com/RedDead11/Todo-App/storage"
	"github.com/RedDead11/Todo-App/supabase"
	"github.com/RedDead11/Todo-App/tasklist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}

	// Spans are not exported; the provider gives logs real trace ids.
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	store, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var deduper api.Deduper
	if cfg.RedisURL != "" {
		redisOpts, err := config.RedisOptions(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(redisOpts)
		defer rc.Close()
		store = storage.NewCache(store, rc, cfg.Table, cfg.CacheTTL, logger)
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	} else {
		logger.Info("REDIS_CONNECTION_STRING not set; row cache and idempotency keys disabled")
	}

	broker := api.NewBroker()
	list := tasklist.New(store, logger,
		tasklist.WithEnterDuration(cfg.EnterDuration),
		tasklist.WithDeleteDelay(cfg.DeleteDelay),
		tasklist.WithObserver(broker.Publish),
	)
	defer list.Close()
	list.Load(context.Background())

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Secure())

	api.Register(e, list, broker, deduper, logger)

	go func() {
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	<-stop
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func openStore(cfg config.Config, logger *log.Logger) (tasklist.Store, error) {
	switch cfg.Backend {
	case config.BackendTables:
		tables, err := storage.NewTables(cfg.StoreURL, cfg.StoreKey, cfg.Table)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := tables.EnsureTable(ctx); err != nil {
			return nil, err
		}
		logger.WithField("table", cfg.Table).Info("using azure tables store")
		return tables, nil
	default:
		if info, err := supabase.KeyRole(cfg.StoreKey); err == nil {
			entry := logger.WithFields(log.Fields{"role": info.Role, "issuer": info.Issuer})
			if info.Expired(time.Now()) {
				entry.Warn("supabase key is expired")
			} else {
				entry.Info("using supabase store")
			}
		} else {
			logger.WithError(err).Debug("supabase key is not a jwt")
		}
		return supabase.New(cfg.StoreURL, cfg.StoreKey, cfg.Table)
	}
}
