package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lexiqai/speech-engine/internal/backend"
	"github.com/lexiqai/speech-engine/internal/config"
	"github.com/lexiqai/speech-engine/internal/observability"
	"github.com/lexiqai/speech-engine/internal/transport"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("grpc_port", cfg.GRPCPort).
		Str("backend", cfg.Backend).
		Str("speech_mode", cfg.SpeechMode).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech Engine Service starting")

	// Load the recognition model once; every stream shares it
	model, err := backend.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize recognition backend")
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing recognition model")
		}
	}()

	streams := transport.NewStreamHandler(cfg, model, logger)

	// Create HTTP server
	mux := http.NewServeMux()
	mux.Handle("/streams/audio", streams)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	checks := map[string]observability.HealthCheckFunc{}
	if checker, ok := model.(backend.HealthChecker); ok {
		checks["backend"] = func(ctx context.Context) (bool, error) {
			if err := checker.Ready(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Streams are long lived, so only the request headers are bounded
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// gRPC health service for orchestrators that probe over gRPC
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		logger.Fatal().Err(err).Str("grpc_port", cfg.GRPCPort).Msg("Failed to listen for gRPC")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/audio", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("grpc_port", cfg.GRPCPort).Msg("gRPC health server listening")
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal or a server failure, then shut both down
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return
	}

	logger.Info().
		Int64("active_streams", streams.ActiveStreams()).
		Msg("Server exited gracefully")
}
