package dde

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. Pass a shared instance
// via WithMetrics when running multiple schedulers in one process; each
// NewMetrics call registers fresh collectors on the given registerer.
type Metrics struct {
	InflightNodes      prometheus.Gauge
	ReadyQueueDepth    prometheus.Gauge
	NodeDuration       *prometheus.HistogramVec
	RetriesTotal       *prometheus.CounterVec
	ContractViolations *prometheus.CounterVec
	CheckpointsSaved   prometheus.Counter
	RunsTotal          *prometheus.CounterVec
}

// NewMetrics creates and registers the engine's collectors. A nil registerer
// uses the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		InflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dde",
			Name:      "inflight_nodes",
			Help:      "Number of node attempts currently executing.",
		}),
		ReadyQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dde",
			Name:      "ready_queue_depth",
			Help:      "Nodes whose dependencies are satisfied but which have not been dispatched.",
		}),
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dde",
			Name:      "node_duration_ms",
			Help:      "Wall time of a node from dispatch to terminal status, in milliseconds.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000, 300000},
		}, []string{"node", "status"}),
		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dde",
			Name:      "retries_total",
			Help:      "Retry attempts scheduled after transient failures, by node.",
		}, []string{"node"}),
		ContractViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dde",
			Name:      "contract_violations_total",
			Help:      "Contract reconciliations that found the real output diverging from its mock or schema.",
		}, []string{"contract"}),
		CheckpointsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dde",
			Name:      "checkpoints_saved_total",
			Help:      "Run snapshots persisted to the checkpoint store.",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dde",
			Name:      "runs_total",
			Help:      "Finished runs by terminal status.",
		}, []string{"status"}),
	}
}
