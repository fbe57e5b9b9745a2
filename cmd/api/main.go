package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"articlepress/internal/api"
	"articlepress/internal/artifact"
	"articlepress/internal/config"
	"articlepress/internal/gateway"
	"articlepress/internal/orchestrator"
	"articlepress/internal/queue"
	"articlepress/internal/ratelimit"
	"articlepress/internal/store"
	"articlepress/internal/telemetry"
	"articlepress/internal/urlcheck"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "articlepress-api",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

	jobStore, err := newJobStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("job store setup failed: %v", err)
	}

	storage, err := newArtifactStorage(ctx, cfg.Artifacts)
	if err != nil {
		logger.Fatalf("artifact storage setup failed: %v", err)
	}

	var renderGateway orchestrator.RendererGateway
	var queueClient *queue.Client
	switch cfg.Dispatch.Mode {
	case "http":
		renderGateway = gateway.NewHTTPGateway(cfg.Dispatch.RendererURL, cfg.Dispatch.CallbackURL, cfg.Dispatch.Timeout)
	default:
		queueClient = queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		renderGateway = gateway.NewQueueGateway(queueClient, cfg.Dispatch.CallbackURL)
	}

	checker := urlcheck.NewChecker(cfg.Probe.Timeout)
	orch := orchestrator.New(logger, jobStore, renderGateway, checker, orchestrator.Config{
		StrictTerminal:  cfg.API.StrictTerminal,
		DispatchTimeout: cfg.Dispatch.Timeout,
	})
	resolver := artifact.NewResolver(logger, jobStore, storage)

	opts := api.Options{
		RateLimitClientHeader: cfg.RateLimit.ClientHeader,
		CallbackSecret:        cfg.Callback.SigningSecret,
		CORSOrigin:            cfg.API.CORSOrigin,
	}
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		limiter, err := ratelimit.NewTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		opts.RateLimiter = limiter
	}

	app := api.NewServer(logger, orch, resolver, opts)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}
	if closer, ok := jobStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Printf("job store close error: %v", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown error: %v", err)
	}
}

func newJobStore(ctx context.Context, cfg config.DatabaseConfig) (store.JobStore, error) {
	if cfg.Backend == "postgres" {
		return store.NewPostgresJobStore(ctx, cfg.DSN)
	}
	return store.NewMemoryJobStore(), nil
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
