package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "civic_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	// Source metrics.
	RowsLoaded     prometheus.Counter
	RowsRejected   *prometheus.CounterVec // labels: reason={coordinate,timestamp,other}
	FieldsDegraded *prometheus.CounterVec // labels: field={categories,organizations}
	SourceCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Render metrics.
	ViewsRendered   *prometheus.CounterVec // labels: mode={points,heatmap,cluster}
	ViewErrors      *prometheus.CounterVec // labels: reason={invalid_params,source,internal}
	RenderDuration  prometheus.Histogram
	ClusterDuration prometheus.Histogram
	ClustersFound   prometheus.Histogram
	FilteredTickets prometheus.Histogram

	// Snapshot publishing.
	SnapshotsPublished *prometheus.CounterVec // labels: outcome={success,error,dropped}
	SnapshotsEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Total ticket rows derived successfully from the record source.",
		}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Ticket rows excluded during derivation, by reason.",
		}, []string{"reason"}),
		FieldsDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_degraded_total",
			Help:      "Set-like fields that fell back to the empty set, by field.",
		}, []string{"field"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Source table cache lookups by result.",
		}, []string{"result"}),
		ViewsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_rendered_total",
			Help:      "Views rendered successfully, by map mode.",
		}, []string{"mode"}),
		ViewErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_errors_total",
			Help:      "Failed view renders, by reason.",
		}, []string{"reason"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of a complete filter, cluster, and projection run.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ClusterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_duration_seconds",
			Help:      "Duration of the density clustering stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ClustersFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clusters_found",
			Help:      "Number of clusters found per clustering run.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		FilteredTickets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filtered_tickets",
			Help:      "Tickets remaining after filtering, per view.",
			Buckets:   []float64{0, 10, 50, 100, 500, 1000, 2500, 5000, 10000},
		}),
		SnapshotsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "View snapshots sent to Kafka, by outcome.",
		}, []string{"outcome"}),
		SnapshotsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshots_enabled",
			Help:      "1 when view snapshot publishing is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsLoaded,
		m.RowsRejected,
		m.FieldsDegraded,
		m.SourceCache,
		m.ViewsRendered,
		m.ViewErrors,
		m.RenderDuration,
		m.ClusterDuration,
		m.ClustersFound,
		m.FilteredTickets,
		m.SnapshotsPublished,
		m.SnapshotsEnabled,
	}
}
