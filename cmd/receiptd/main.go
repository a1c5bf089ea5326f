package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/export"
	"github.com/joseph-ayodele/receipt-pipeline/internal/imagestore"
	"github.com/joseph-ayodele/receipt-pipeline/internal/matching"
	"github.com/joseph-ayodele/receipt-pipeline/internal/parsing"
	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/receipt-pipeline/internal/queue"
	"github.com/joseph-ayodele/receipt-pipeline/internal/recognition"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
	"github.com/joseph-ayodele/receipt-pipeline/internal/server"
	"github.com/joseph-ayodele/receipt-pipeline/internal/validation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB pool
	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening DB pool", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
		logger.Error("DB health failed", "error", err)
		os.Exit(1)
	}
	logger.Info("DB health OK")

	// Repositories
	jobsRepo := repository.NewJobRepository(pool, logger)
	receiptsRepo := repository.NewReceiptRepository(pool, logger)
	candidatesRepo := repository.NewMatchCandidateRepository(pool, logger)
	errorsRepo := repository.NewErrorLogRepository(pool, logger)
	reviewRepo := repository.NewReviewRepository(pool, logger)

	// External collaborators
	images := imagestore.NewFSStore(cfg.Adapters.ImageRoot, logger)
	recognizer := recognition.WithRetry(
		recognition.NewHTTPExtractor(cfg.Adapters.RecognitionURL, cfg.Adapters.HTTPTimeout, logger),
		recognition.NewRetryPolicy(),
		logger,
	)
	parser := parsing.NewHTTPParser(cfg.Adapters.ParsingURL, cfg.Adapters.HTTPTimeout, logger)
	matcher := matching.NewHTTPMatcher(cfg.Adapters.MatchingURL, cfg.Adapters.HTTPTimeout, logger)

	// Core services
	validator := validation.NewService(logger, cfg.Thresholds, errorsRepo, reviewRepo)
	processor := pipeline.NewProcessor(
		logger, cfg.Thresholds,
		images, recognizer, parser, matcher,
		jobsRepo, receiptsRepo, candidatesRepo, validator,
	)
	retrier := pipeline.NewRetryController(logger, jobsRepo, validator, cfg.Thresholds)

	workQueue := queue.NewWorkerQueue(processor, retrier, logger,
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithQueueSize(cfg.Queue.Size),
		queue.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	// HTTP API: job submission and receipt exports
	exporter := export.NewService(receiptsRepo, logger)
	api := server.New(workQueue, exporter, logger)
	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: api.Handler(),
	}
	go func() {
		logger.Info("HTTP API serving", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
		}
	}()

	// gRPC health endpoint for orchestration probes
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC health serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
		}
	}()

	logger.Info("receipt pipeline worker running",
		"workers", cfg.Queue.Workers,
		"max_retries", cfg.Thresholds.MaxRetries,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	workQueue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
