package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/account-batch-fetcher/pkg/logging"
	"github.com/Sternrassler/account-batch-fetcher/pkg/metrics"
)

// DefaultConcurrencyLimit is the maximum number of fetches in flight per wave.
const DefaultConcurrencyLimit = 5

// Prometheus metrics for batch fetching.
var (
	batchWavesTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "fanout_batch_waves_total",
		Help: "Total number of fetch waves dispatched",
	})

	batchItemsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_batch_items_total",
		Help: "Total number of account fetches by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "fanout_batch_duration_seconds",
		Help:    "Duration of a complete batch fetch in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Config holds batch fetcher configuration.
type Config struct {
	// ConcurrencyLimit is the maximum number of fetches per wave.
	ConcurrencyLimit int
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit: DefaultConcurrencyLimit,
	}
}

// AccountFetcher retrieves the payload for a single account.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, accountID string) (json.RawMessage, error)
}

// Outcome is the settled result of fetching one account.
// Exactly one of Payload and Err is meaningful: Err == nil means success.
type Outcome struct {
	AccountID string
	Payload   json.RawMessage
	Err       error
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Fetcher fetches batches of accounts in sequential waves.
type Fetcher struct {
	source AccountFetcher
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a new batch fetcher.
func NewFetcher(source AccountFetcher, config Config) *Fetcher {
	if config.ConcurrencyLimit <= 0 {
		config.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	return &Fetcher{
		source: source,
		config: config,
		logger: logging.NewLogger("batch-fetcher"),
	}
}

// Partition splits ids into contiguous chunks of at most size entries,
// preserving order. The last chunk may be shorter.
func Partition(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultConcurrencyLimit
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// FetchAll fetches every account and returns the successful payloads in input order.
// The returned slice is never nil, so it encodes as [] when every fetch failed.
func (f *Fetcher) FetchAll(ctx context.Context, accountIDs []string) []json.RawMessage {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	waves := Partition(accountIDs, f.config.ConcurrencyLimit)
	results := make([]json.RawMessage, 0, len(accountIDs))

	for i, wave := range waves {
		outcomes := f.fetchWave(ctx, i, wave)

		succeeded := 0
		for _, outcome := range outcomes {
			if !outcome.OK() {
				continue
			}
			results = append(results, outcome.Payload)
			succeeded++
		}

		f.logger.Debug().
			Int("wave", i).
			Int("size", len(wave)).
			Int("succeeded", succeeded).
			Msg("Wave complete")
	}

	f.logger.Info().
		Int("requested", len(accountIDs)).
		Int("succeeded", len(results)).
		Int("failed", len(accountIDs)-len(results)).
		Int("waves", len(waves)).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

// fetchWave fetches one wave concurrently and waits for every fetch to settle.
// Outcomes are returned in the same order as ids.
func (f *Fetcher) fetchWave(ctx context.Context, wave int, ids []string) []Outcome {
	batchWavesTotal.Inc()

	outcomes := make([]Outcome, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(slot int, accountID string) {
			defer wg.Done()
			outcomes[slot] = f.fetchOne(ctx, wave, accountID)
		}(i, id)
	}
	wg.Wait()

	return outcomes
}

// fetchOne fetches a single account, turning errors and panics into a failed Outcome.
func (f *Fetcher) fetchOne(ctx context.Context, wave int, accountID string) (outcome Outcome) {
	outcome.AccountID = accountID

	defer func() {
		if r := recover(); r != nil {
			outcome.Payload = nil
			outcome.Err = fmt.Errorf("fetch panicked: %v", r)
		}
		f.record(wave, outcome)
	}()

	payload, err := f.source.FetchAccount(ctx, accountID)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Payload = payload
	return outcome
}

func (f *Fetcher) record(wave int, outcome Outcome) {
	if !outcome.OK() {
		batchItemsTotal.WithLabelValues("failure").Inc()
		f.logger.Warn().
			Err(outcome.Err).
			Str("account_id", outcome.AccountID).
			Int("wave", wave).
			Msg("Account fetch failed")
		return
	}

	batchItemsTotal.WithLabelValues("success").Inc()
	f.logger.Debug().
		Str("account_id", outcome.AccountID).
		Int("wave", wave).
		Int("bytes", len(outcome.Payload)).
		Msg("Account fetched")
}
