// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"educhat/platform/apikey"
	"educhat/platform/config"
	"educhat/platform/gateway"
	"educhat/platform/metering"
	"educhat/platform/providers"
	"educhat/platform/shared/logger"
)

// Run is the exported entry point for the gateway service. It loads
// configuration, connects storage, builds every vendor adapter up
// front, and serves until SIGINT/SIGTERM, then drains in-flight
// requests within the configured shutdown timeout.
//
// Environment variables used:
//
//	GATEWAY_CONFIG - path to the YAML configuration (default: gateway.yaml)
func Run() error {
	log := logger.New("gateway")

	configPath := os.Getenv("GATEWAY_CONFIG")
	if configPath == "" {
		configPath = "gateway.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	var limiter *RateLimiter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = redisClient.Close()
		}()
		limiter = NewRateLimiter(redisClient, cfg.Redis.RateLimitPerMin)
	} else {
		log.Warn("", "redis not configured, rate limiting disabled", nil)
	}

	// Adapter construction happens once, here: a bad model config
	// stops the process instead of surfacing per request.
	adapters, err := providers.NewFactory().BuildAll(cfg.ModelConfigs())
	if err != nil {
		return fmt.Errorf("adapter construction failed: %w", err)
	}
	router := gateway.NewRouter(adapters, log)

	usageRepo := metering.NewPostgresRepository(db)
	keyRepo := apikey.NewPostgresRepository(db)

	srv := New(Deps{
		Router:      router,
		Keys:        apikey.NewStore(keyRepo, log),
		Recorder:    metering.NewRecorder(usageRepo, log),
		Budget:      metering.NewBudgetEnforcer(usageRepo),
		Prices:      cfg.Prices(),
		Limiter:     limiter,
		AdminToken:  cfg.Server.AdminToken,
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "gateway listening", map[string]interface{}{
			"port":   cfg.Server.Port,
			"models": len(adapters),
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("", "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
