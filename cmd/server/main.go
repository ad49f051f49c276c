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

	"github.com/jayhereforshort/haulharbor/internal/cache"
	"github.com/jayhereforshort/haulharbor/internal/config"
	"github.com/jayhereforshort/haulharbor/internal/httpapi"
	"github.com/jayhereforshort/haulharbor/internal/logger"
	"github.com/jayhereforshort/haulharbor/internal/recalc"
	"github.com/jayhereforshort/haulharbor/internal/service"
	"github.com/jayhereforshort/haulharbor/internal/store"
	"github.com/jayhereforshort/haulharbor/internal/store/memory"
	pgstore "github.com/jayhereforshort/haulharbor/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "haulharbor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set, refusing in-memory fallback: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Infow("repository ready", "backend", "postgres")
	} else {
		repo = memory.NewSeeded()
		log.Infow("repository ready", "backend", "memory", "demo_account_id", memory.DemoAccountID)
	}

	var totalsCache cache.TotalsCache = cache.NoopTotalsCache{}
	var locker cache.AccountLocker = cache.NoopAccountLocker{}
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisTotalsCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, totals cache and account locks disabled", "addr", cfg.RedisAddr, "error", err)
			_ = redisCache.Close()
		} else {
			totalsCache = redisCache
			locker = cache.NewRedisAccountLocker(client, cfg.LockTTL(), cfg.LockWait())
			closers = append(closers, redisCache.Close)
			log.Infow("cache ready", "backend", "redis", "addr", cfg.RedisAddr)
		}
	} else {
		log.Infow("cache ready", "backend", "noop")
	}

	engine := recalc.NewEngine(repo, totalsCache, cfg.TotalsCacheTTL())
	svc := service.New(repo, engine, locker)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("haulharbor listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("shutdown error", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Errorw("close error", "error", err)
		}
	}
	log.Infow("server stopped")
	return nil
}

// validateSecurityConfig requires a strong AUTH_SECRET outside development.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.IsDevelopment() {
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name an origin outside development")
	}
	return nil
}
