package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dandantas/vigil/internal/config"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/handler"
	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/mq"
	"github.com/dandantas/vigil/internal/scheduler"
	"github.com/dandantas/vigil/internal/service"
	"github.com/dandantas/vigil/internal/worker"
	"github.com/dandantas/vigil/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Vigil assignment service", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	db, err := database.Connect(ctx, database.ConnectOptions{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		Timeout:     cfg.MongoTimeout,
		MaxPoolSize: cfg.MongoMaxPool,
		MinPoolSize: cfg.MongoMinPool,
	})
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	// Create indexes
	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	podID := scheduler.PodID()
	recorder := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	taskRepo := database.NewTaskRepository(db)
	workerRepo := database.NewWorkerRepository(db)
	assignmentRepo := database.NewAssignmentRepository(db)
	checkResultRepo := database.NewCheckResultRepository(db)

	// Event publishing is optional
	var (
		leasePublisher service.LeaseEventPublisher
		checkPublisher service.CheckEventPublisher
	)
	if cfg.AMQPURL != "" {
		conn, err := mq.NewConnection(ctx, cfg.AMQPURL)
		if err != nil {
			slog.Error("Failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			slog.Error("Failed to declare RabbitMQ topology", "error", err)
			os.Exit(1)
		}

		publisher := mq.NewPublisher(conn, mq.NewBreaker(cfg.AMQPBreakerFailures, cfg.AMQPBreakerCooldown))
		leasePublisher = publisher
		checkPublisher = publisher
	} else {
		slog.Info("AMQP_URL not set, event publishing disabled")
	}

	// Initialize services
	generator := service.NewGenerator(taskRepo, workerRepo, assignmentRepo, service.GeneratorConfig{
		LeaseDuration:  cfg.LeaseDuration,
		CooldownWindow: cfg.CooldownWindow,
		MaxPerWorker:   cfg.MaxAssignmentsPerWorker,
		Publisher:      leasePublisher,
		Metrics:        recorder,
	})
	completionRecorder := service.NewCompletionRecorder(assignmentRepo, recorder)
	assignmentService := service.NewAssignmentService(assignmentRepo, workerRepo)

	// Completion runs inline unless a pool is configured
	var notifier service.CompletionNotifier = service.NewInlineNotifier(completionRecorder)
	var pool *worker.CompletionPool
	if cfg.CompletionWorkers > 0 {
		pool = worker.NewCompletionPool(cfg.CompletionWorkers, cfg.CompletionQueueSize, completionRecorder.Complete)
		pool.Start()
		notifier = pool
	}

	ingestionService := service.NewIngestionService(checkResultRepo, workerRepo, notifier, checkPublisher, recorder)

	// Initialize scheduler
	var locker scheduler.Locker
	if cfg.GenerationLockEnabled {
		locker = database.NewLockRepository(db, podID)
	}

	sched, err := scheduler.NewScheduler(cfg, generator, locker, scheduler.RealClock())
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	sched.SetPodID(podID)
	sched.SetMetrics(recorder)
	sched.Start(ctx)

	// Initialize handlers
	assignmentHandler := handler.NewAssignmentHandler(sched, assignmentService)
	checkHandler := handler.NewCheckHandler(ingestionService)
	healthHandler := handler.NewHealthHandler(db, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	// Create router
	router := handler.NewRouter(
		assignmentHandler,
		checkHandler,
		healthHandler,
		promhttp.Handler(),
		recorder,
		corsConfig,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop scheduler first (wait for an in-flight cycle)
	slog.Info("Stopping scheduler...")
	sched.Stop(shutdownCtx)

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Drain queued completions once no new submissions can arrive
	if pool != nil {
		pool.Stop()
	}

	slog.Info("Vigil assignment service stopped")
}
