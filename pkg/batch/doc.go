// Package batch fans a list of account IDs out to an upstream service in
// bounded waves and collects the payloads that came back successfully.
//
// IDs are split into contiguous waves of at most Config.ConcurrencyLimit
// entries. Waves run one after another; every fetch in a wave runs on its own
// goroutine and the wave ends only when all of them have settled. A failed
// fetch is logged and dropped, so the result holds the surviving payloads in
// input order with no marker for the gaps.
//
// Example usage:
//
//	fetcher := batch.NewFetcher(upstreamClient, batch.DefaultConfig())
//	payloads := fetcher.FetchAll(ctx, []string{"a1", "a2", "a3"})
//
// Failures are never retried and never returned to the caller; the reason is
// only available in logs and in the fanout_batch_items_total metric.
package batch
