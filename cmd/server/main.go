package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/handler"
	"fanloyalty/internal/infrastructure/cache"
	"fanloyalty/internal/infrastructure/database"
	"fanloyalty/internal/infrastructure/lock"
	"fanloyalty/internal/infrastructure/mq"
	"fanloyalty/internal/job"
	"fanloyalty/internal/service"
	"fanloyalty/pkg/idgen"

	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)
	setupLogger(cfg.Server.Mode)

	if err := idgen.Init(cfg.Jobs.WorkerID); err != nil {
		slog.Error("init id generator failed", slog.Any("err", err))
		os.Exit(1)
	}

	db := database.InitDB(&cfg.Database)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = cache.InitRedis(&cfg.Redis)
		defer redisClient.Close()
	} else {
		slog.Warn("redis disabled: standing is read from the store and jobs run without leader election")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hostname, _ := os.Hostname()
	owner := fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), cfg.Jobs.WorkerID)
	leaderLock := func(name string, ttl time.Duration) *lock.DistributedLock {
		if redisClient == nil {
			return nil
		}
		return lock.NewJobLock(redisClient, name, owner, ttl)
	}

	if cfg.Kafka.Enabled {
		publisher := mq.InitPublisher(&cfg.Kafka)
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(db, cfg, publisher, leaderLock("outbox", 15*time.Second))
		go outboxSender.Start(ctx)
	} else {
		slog.Warn("kafka disabled: ledger events stay PENDING in the outbox")
	}

	reconcileJob := job.NewLedgerReconcileJob(db, cfg, service.NewMembershipService(db),
		leaderLock("reconcile", cfg.Jobs.ReconcileInterval+time.Minute))
	go reconcileJob.Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server listening", slog.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.Any("err", err))
	}

	slog.Info("server stopped")
}

// setupLogger uses JSON in release mode and text otherwise.
func setupLogger(mode string) {
	var h slog.Handler
	if mode == "release" {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}
