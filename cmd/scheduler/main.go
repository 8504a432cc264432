// cmd/scheduler — one scheduler instance: dispatch loop, reaper, heartbeat,
// admin + metrics HTTP listener. Any number of instances may run against the
// same database; the job lock table arbitrates between them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harperreed/glimpser-rs-sub000/internal/admin"
	"github.com/harperreed/glimpser-rs-sub000/internal/config"
	"github.com/harperreed/glimpser-rs-sub000/internal/db"
	"github.com/harperreed/glimpser-rs-sub000/internal/dispatch"
	"github.com/harperreed/glimpser-rs-sub000/internal/domain"
	"github.com/harperreed/glimpser-rs-sub000/internal/executor"
	"github.com/harperreed/glimpser-rs-sub000/internal/instance"
	"github.com/harperreed/glimpser-rs-sub000/internal/lock"
	"github.com/harperreed/glimpser-rs-sub000/internal/migrate"
	"github.com/harperreed/glimpser-rs-sub000/internal/mq"
	"github.com/harperreed/glimpser-rs-sub000/internal/reaper"
	"github.com/harperreed/glimpser-rs-sub000/internal/store"
)

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("load config failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger.Info("connecting to database")
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to database failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrate.Run(ctx, pool, logger); err != nil {
		logger.Error("run migrations failed", "err", err)
		os.Exit(1)
	}

	jobs := store.NewJobs(pool)
	execs := store.NewExecutions(pool)
	instances := store.NewInstances(pool)
	storeLocks := lock.NewStoreManager(pool, logger)

	var locks lock.Manager = storeLocks
	if !cfg.DistributedLocking {
		// Unsafe with more than one instance: a process-local locker cannot
		// arbitrate between independent processes.
		logger.Warn("distributed locking disabled; multi-instance deployments require it")
		locks = lock.NewLocalManager()
	}

	// Executor registration. Real job implementations are wired in by the
	// host application; these defaults keep the binary self-contained.
	registry := executor.NewRegistry()
	registry.Register(domain.KindCapture, executor.Func(
		func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			logger.Info("capture executor invoked", "params", string(params))
			return json.RawMessage(`{"captured":true}`), nil
		}))
	registry.Register(domain.KindSnapshot, executor.Func(
		func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			logger.Info("snapshot executor invoked", "params", string(params))
			return json.RawMessage(`{"snapshot":true}`), nil
		}))
	registry.Register(domain.KindNotification, executor.Func(
		func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			logger.Info("notification executor invoked", "params", string(params))
			return json.RawMessage(`{"notified":true}`), nil
		}))
	registry.Register(domain.KindCleanup, executor.Func(
		func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
			logger.Info("cleanup executor invoked", "params", string(params))
			return json.RawMessage(`{"cleaned":true}`), nil
		}))

	// Every stored kind must have an executor before the loop starts; an
	// unregistered kind is a configuration error, not a dispatch error.
	kinds, err := jobs.DistinctKinds(ctx)
	if err != nil {
		logger.Error("load job kinds failed", "err", err)
		os.Exit(1)
	}
	if err := registry.ValidateKinds(kinds); err != nil {
		logger.Error("executor registry validation failed", "err", err)
		os.Exit(1)
	}

	var publisher *mq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = mq.NewPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("connect to RabbitMQ failed", "err", err)
			os.Exit(1)
		}
		defer publisher.Close()
	}

	instanceID := instance.ID()
	hostname, _ := os.Hostname()
	if err := instances.Register(ctx, instanceID, hostname, os.Getpid()); err != nil {
		logger.Error("register instance failed", "err", err)
		os.Exit(1)
	}

	dispatcher := dispatch.New(dispatch.Config{
		Jobs:          jobs,
		Execs:         execs,
		Instances:     instances,
		Locks:         locks,
		Registry:      registry,
		Publisher:     publisher,
		Logger:        logger,
		InstanceID:    instanceID,
		PollInterval:  cfg.PollInterval,
		LockLease:     cfg.LockLease,
		Jitter:        cfg.ScheduleJitter,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	rp := reaper.New(reaper.Config{
		Pool:      pool,
		Locks:     storeLocks,
		Execs:     execs,
		Instances: instances,
		Retention: cfg.HistoryRetention,
		Logger:    logger,
	})

	svc := admin.NewService(jobs, execs, locks, registry, dispatcher, instanceID, cfg.LockLease, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	svc.Routes(mux)

	server := &http.Server{
		Addr:    ":" + cfg.AdminPort,
		Handler: mux,
	}
	go func() {
		logger.Info("admin listening", "port", cfg.AdminPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server error", "err", err)
			cancel()
		}
	}()

	logger.Info("scheduler ready",
		"instance_id", instanceID,
		"executors", registry.Kinds(),
		"distributed_locking", cfg.DistributedLocking)

	go dispatcher.RunHeartbeat(ctx)
	go rp.Run(ctx)
	go dispatcher.Start(ctx)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer drainCancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		logger.Warn("drain timeout; running locks will expire and be reaped", "err", err)
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = server.Shutdown(shutCtx)

	logger.Info("shutdown complete")
}
