package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"articlepress/internal/artifact"
	"articlepress/internal/callback"
	"articlepress/internal/config"
	"articlepress/internal/renderer"
	"articlepress/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[renderer] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "articlepress-renderer",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	storage, err := newArtifactStorage(ctx, cfg.Artifacts)
	if err != nil {
		logger.Fatalf("artifact storage setup failed: %v", err)
	}

	callbacks := callback.NewClient(callback.Config{
		SigningSecret: cfg.Callback.SigningSecret,
		MaxAttempts:   cfg.Callback.MaxAttempts,
	})

	srv, err := renderer.NewServer(logger, cfg.Queue, cfg.Renderer, storage, callbacks)
	if err != nil {
		logger.Fatalf("renderer setup failed: %v", err)
	}

	go func() {
		metricsServer := &http.Server{
			Addr:         cfg.Renderer.MetricsAddr,
			Handler:      srv.MetricsHandler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		logger.Printf("metrics listening on %s", cfg.Renderer.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	logger.Printf(
		"starting renderer concurrency=%d max_active_jobs=%d queue=%s redis=%s",
		cfg.Renderer.Concurrency,
		cfg.Renderer.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	if err := srv.Run(); err != nil {
		logger.Fatalf("renderer failed: %v", err)
	}
}

func newArtifactStorage(ctx context.Context, cfg config.ArtifactConfig) (artifact.Storage, error) {
	if cfg.Backend == "s3" {
		objectStorage, err := artifact.NewObjectStorage(artifact.ObjectStorageConfig{
			Endpoint: cfg.Endpoint,
			Access:   cfg.Access,
			Secret:   cfg.Secret,
			Bucket:   cfg.Bucket,
			UseSSL:   cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return objectStorage, nil
	}
	return artifact.NewLocalStorage(cfg.Dir)
}
