package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stacktrail_query_fetches_total",
		Help: "Number of backend fetches issued, by query kind.",
	}, []string{"query"})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stacktrail_query_failures_total",
		Help: "Number of backend fetches that resolved with an error, by query kind.",
	}, []string{"query"})

	staleDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stacktrail_stale_responses_discarded_total",
		Help: "Number of fetch responses discarded because a newer fetch superseded them, by query kind.",
	}, []string{"query"})

	chainAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stacktrail_chain_anomalies_total",
		Help: "Number of hash chain anomalies detected across loaded timelines.",
	})

	workingSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stacktrail_working_set_records",
		Help: "Number of change records in the current working set.",
	})
)
