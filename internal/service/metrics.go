package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entryMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_entry_mutations_total",
		Help: "Entry mutations handled by the gateway, by operation and outcome",
	}, []string{"op", "outcome"})

	assetCleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_asset_cleanup_failures_total",
		Help: "Photo assets that could not be removed from object storage",
	})

	pageCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_page_cache_lookups_total",
		Help: "Shared trip page cache lookups, by result",
	}, []string{"result"})
)

// observe records the outcome of one gateway operation.
func observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = errorCode(err)
	}
	entryMutationsTotal.WithLabelValues(op, outcome).Inc()
}
