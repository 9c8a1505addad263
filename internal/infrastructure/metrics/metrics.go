package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "promptea"

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// Workflow metrics
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	NodesCreated  *prometheus.CounterVec
	NodesRemoved  prometheus.Counter
	Uploads       *prometheus.CounterVec
	BackendCalls  *prometheus.CounterVec
	BackendTiming *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Inference backend metrics
	ChunksIndexed prometheus.Counter
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Workflow runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Backend round trip of a workflow run",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		NodesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_created_total",
				Help:      "Nodes created, by type",
			},
			[]string{"type"},
		),
		NodesRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_deleted_total",
				Help:      "Total number of nodes deleted",
			},
		),
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Knowledge-base uploads by final status",
			},
			[]string{"status"},
		),
		BackendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Calls to the inference backend",
			},
			[]string{"operation", "result"},
		),
		BackendTiming: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Inference backend call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ChunksIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_indexed_total",
				Help:      "Document chunks embedded and stored",
			},
		),
	}

	registry.MustRegister(
		c.Runs,
		c.RunDuration,
		c.NodesCreated,
		c.NodesRemoved,
		c.Uploads,
		c.BackendCalls,
		c.BackendTiming,
		c.HTTPRequests,
		c.HTTPDuration,
		c.ChunksIndexed,
	)
	return c
}

// RunFinished records one run. Rejected runs never reached the backend and
// are not timed.
func (c *Collector) RunFinished(outcome string, d time.Duration) {
	c.Runs.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.RunDuration.Observe(d.Seconds())
	}
}

func (c *Collector) NodeCreated(t graph.NodeType) { c.NodesCreated.WithLabelValues(string(t)).Inc() }

func (c *Collector) NodesDeleted(n int) { c.NodesRemoved.Add(float64(n)) }

func (c *Collector) UploadFinished(status graph.UploadStatus) {
	c.Uploads.WithLabelValues(string(status)).Inc()
}

// BackendCall records one inference backend call
func (c *Collector) BackendCall(operation string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.BackendCalls.WithLabelValues(operation, result).Inc()
	c.BackendTiming.WithLabelValues(operation).Observe(d.Seconds())
}

// HTTPRequest records one served request
func (c *Collector) HTTPRequest(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ChunksStored records chunks added to the vector store
func (c *Collector) ChunksStored(n int) { c.ChunksIndexed.Add(float64(n)) }

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
