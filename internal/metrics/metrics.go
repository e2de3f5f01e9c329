// Package metrics exposes Prometheus counters for sync runs and cache traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncRuns counts finished sync runs by final status.
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_sync_runs_total",
		Help: "Completed sync runs by final provider status.",
	}, []string{"status"})

	// ReconcileRows counts rows upserted per content kind.
	ReconcileRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_reconcile_rows_total",
		Help: "Rows upserted by the reconciliation engine, per kind.",
	}, []string{"kind"})

	// ReconcilePruned counts rows deleted as upstream orphans per kind.
	ReconcilePruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_reconcile_pruned_total",
		Help: "Rows pruned by the reconciliation engine, per kind.",
	}, []string{"kind"})

	// CacheHits and CacheMisses count lookups per cache ("proxy", "epg_nownext").
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_cache_hits_total",
		Help: "Cache hits per cache.",
	}, []string{"cache"})
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_cache_misses_total",
		Help: "Cache misses per cache.",
	}, []string{"cache"})

	// EPGProgramsUpserted counts guide entries written.
	EPGProgramsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_epg_programs_upserted_total",
		Help: "EPG program rows upserted.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
