package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/account-batch-fetcher/internal/config"
	"github.com/Sternrassler/account-batch-fetcher/pkg/batch"
	"github.com/Sternrassler/account-batch-fetcher/pkg/cache"
	"github.com/Sternrassler/account-batch-fetcher/pkg/handler"
	"github.com/Sternrassler/account-batch-fetcher/pkg/logging"
	"github.com/Sternrassler/account-batch-fetcher/pkg/metrics"
	"github.com/Sternrassler/account-batch-fetcher/pkg/upstream"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cacheManager *cache.Manager
	if cfg.CacheEnabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		cacheManager = cache.NewManager(redisClient)
	}

	upstreamClient, err := upstream.New(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
		Cache:     cacheManager,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	fetcher := batch.NewFetcher(upstreamClient, batch.Config{
		ConcurrencyLimit: cfg.Batch.ConcurrencyLimit,
	})

	var ready Pinger
	if cacheManager != nil {
		ready = cacheManager
	}

	server := newServer(cfg.Server, newMux(handler.New(fetcher), ready))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("addr", server.Addr).
		Str("upstream", cfg.Upstream.BaseURL).
		Int("concurrency_limit", cfg.Batch.ConcurrencyLimit).
		Bool("cache", cacheManager != nil).
		Msg("Starting account batch fetcher")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

// newServer bounds how long a client may take to send its request. There is
// no WriteTimeout: a batch runs ceil(N/limit) waves, each bounded by the
// upstream timeout, so its duration grows with the request size.
func newServer(cfg config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     h,
		ReadTimeout: cfg.RequestTimeout,
	}
}

func newMux(accounts http.Handler, ready Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(ready))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/accounts", postOnly(accounts))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while the cache backend is unreachable.
// A nil pinger (cache disabled) is always ready.
func readyHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := pinger.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("Readiness check failed")
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func postOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
