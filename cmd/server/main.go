package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franzego/eventmailer/internal/config"
	"github.com/franzego/eventmailer/internal/handlers"
	"github.com/franzego/eventmailer/internal/invocation"
	"github.com/franzego/eventmailer/internal/processor"
	"github.com/franzego/eventmailer/internal/scheduler"
	"github.com/franzego/eventmailer/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	serviceName = "eventmailer"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zl, err := logger.New(cfg.Log.Env)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer zl.Sync()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.Log.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	factory := invocation.NewFactory(cfg, zl)
	notifications := handlers.NewNotificationHandler(factory, cfg.Processor.BatchSize, zl)
	router := handlers.NewRouter(notifications, handlers.NewHealthHandler(serviceName, version), cfg.Webhook.JWTSecret, zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Timer.Enabled {
		go scheduler.Run(ctx, cfg.Timer.Interval, func(ctx context.Context) error {
			ctx = processor.WithCorrelationID(ctx, uuid.New().String())
			return factory.Run(ctx, func(ctx context.Context, p processor.Runner) error {
				result, err := p.ProcessBatch(ctx, cfg.Processor.BatchSize)
				if err != nil {
					return err
				}
				zl.Info("scheduled sweep finished",
					zap.Int("processed", result.Processed),
					zap.Int("successful", result.Successful),
					zap.Int("failed", result.Failed),
				)
				return nil
			})
		}, zl)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// a batch may take a while; writes get more room than reads
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
