package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/Sternrassler/account-batch-fetcher/pkg/batch"
	_ "github.com/Sternrassler/account-batch-fetcher/pkg/cache"
	"github.com/Sternrassler/account-batch-fetcher/pkg/metrics"
)

func TestRegistry(t *testing.T) {
	if metrics.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestGatherer_ExposesPackageMetrics(t *testing.T) {
	families, err := metrics.Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range families {
		found[mf.GetName()] = true
	}

	for _, name := range []string{
		"fanout_batch_waves_total",
		"fanout_batch_duration_seconds",
		"fanout_cache_hits_total",
		"fanout_304_responses_total",
	} {
		if !found[name] {
			t.Errorf("metric %q not registered on Registry", name)
		}
	}
}
