package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/batch-fetch/internal/config"
	"github.com/Sternrassler/batch-fetch/pkg/client"
	"github.com/Sternrassler/batch-fetch/pkg/fetch"
	"github.com/Sternrassler/batch-fetch/pkg/logging"
	"github.com/Sternrassler/batch-fetch/pkg/metrics"
	"github.com/Sternrassler/batch-fetch/pkg/pipeline"
	"github.com/Sternrassler/batch-fetch/pkg/storage"
	"github.com/Sternrassler/batch-fetch/pkg/tally"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run fetches the configured flags. Configuration comes from the
// environment, .env and $FLAGS_CONFIG only.
func run(ctx context.Context, stdout, stderr io.Writer, opts ...config.Option) int {
	cfg, err := config.Load(opts...)
	if err != nil {
		fmt.Fprintf(stderr, "*** Config error: %v\n", err)
		return exitConfig
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: stderr,
	})
	logger := logging.NewLogger(logging.ComponentCmd)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "*** Config error: %v\n", err)
		return exitConfig
	}

	ids, err := cfg.Identifiers()
	if err != nil {
		fmt.Fprintf(stderr, "*** Config error: %v\n", err)
		return exitConfig
	}
	label, baseURL := cfg.Target()

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	transport, err := client.New(clientConfig(cfg, baseURL))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create flag client")
		fmt.Fprintf(stderr, "*** Error: %v\n", err)
		return exitFailure
	}

	saver, closeSaver, err := newSaver(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("store", cfg.Store).Msg("Failed to open store")
		fmt.Fprintf(stderr, "*** Error: %v\n", err)
		return exitFailure
	}
	defer closeSaver()

	tally.WriteInitialReport(stdout, label, baseURL, ids, cfg.ActualConcurrency(len(ids)))

	pcfg := pipeline.DefaultConfig()
	pcfg.Concurrency = cfg.Concurrency
	pcfg.Verbose = cfg.Verbose
	pcfg.Output = stdout
	pcfg.Timeout = cfg.Timeout

	orch, err := pipeline.New(transport, saver, pcfg)
	if err != nil {
		fmt.Fprintf(stderr, "*** Config error: %v\n", err)
		return exitConfig
	}

	report, runErr := orch.Run(ctx, ids)
	tally.WriteFinalReport(stdout, report)

	if runErr != nil {
		logger.Warn().Err(runErr).Msg("Run interrupted")
		return exitInterrupted
	}
	return exitOK
}

func clientConfig(cfg *config.Config, baseURL string) client.Config {
	cc := client.DefaultConfig(baseURL, cfg.UserAgent)
	cc.Timeout = cfg.Timeout
	cc.MaxAttempts = cfg.MaxAttempts
	cc.RateLimit = cfg.RateLimit
	cc.RateBurst = cfg.RateBurst
	return cc
}

// newSaver opens the configured store. The returned func releases it.
func newSaver(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (fetch.Saver, func(), error) {
	noop := func() {}

	switch cfg.Store {
	case config.StoreFile:
		store, err := storage.NewFileStore(cfg.DestDir)
		if err != nil {
			return nil, noop, err
		}
		logger.Debug().Str("dir", store.Dir()).Msg("Saving flags to files")
		return store, noop, nil

	case config.StoreRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			redisClient.Close()
			return nil, noop, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Debug().Str("addr", cfg.RedisAddr).Msg("Saving flags to redis")

		store := storage.NewRedisStore(redisClient, storage.Options{
			Namespace: storage.DefaultNamespace,
			TTL:       cfg.RedisTTL,
		})
		return store, func() { redisClient.Close() }, nil

	default:
		return storage.Discard, noop, nil
	}
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return srv
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
