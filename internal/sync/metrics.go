package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greport",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Repository sync passes by outcome.",
	}, []string{"repository", "outcome"})

	surfaceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greport",
		Subsystem: "sync",
		Name:      "surface_failures_total",
		Help:      "Per-surface sync failures.",
	}, []string{"surface"})

	entitiesSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greport",
		Subsystem: "sync",
		Name:      "entities_synced_total",
		Help:      "Entities upserted into the warehouse per surface.",
	}, []string{"surface"})
)

func recordSync(repository, outcome string) {
	syncsTotal.WithLabelValues(repository, outcome).Inc()
}

func recordSurfaceFailure(surface string) {
	surfaceFailures.WithLabelValues(surface).Inc()
}

func observeSynced(surface string, count int) {
	entitiesSynced.WithLabelValues(surface).Add(float64(count))
}
