package exporter

import (
	"net/http"
	"time"

	"github.com/artpar/modforge/core/compiler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exposes compile metrics for Prometheus scraping.
type PrometheusExporter struct {
	registry *prometheus.Registry
	prefix   string

	compilesTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds prometheus.Histogram
	modules         prometheus.Gauge
	enums           prometheus.Gauge
	references      prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

// PrometheusConfig configures the Prometheus exporter.
type PrometheusConfig struct {
	// Prefix is added to all metric names (default: "modforge").
	Prefix string

	// Labels are constant labels added to all metrics.
	Labels map[string]string

	// Buckets for the duration histogram (in seconds).
	// Default: [0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1]
	Buckets []float64

	// Runtime registers the Go runtime and process collectors.
	Runtime bool
}

// DefaultPrometheusBuckets returns default histogram buckets.
func DefaultPrometheusBuckets() []float64 {
	return []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(cfg PrometheusConfig) *PrometheusExporter {
	if cfg.Prefix == "" {
		cfg.Prefix = "modforge"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = DefaultPrometheusBuckets()
	}

	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels(cfg.Labels)

	e := &PrometheusExporter{
		registry: reg,
		prefix:   cfg.Prefix,
	}

	e.compilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        cfg.Prefix + "_compiles_total",
			Help:        "Total number of compile runs by status",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	e.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        cfg.Prefix + "_compile_errors_total",
			Help:        "Total number of failed compile runs by error kind",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)

	e.durationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        cfg.Prefix + "_compile_duration_seconds",
		Help:        "Compile run duration in seconds",
		Buckets:     cfg.Buckets,
		ConstLabels: constLabels,
	})

	e.modules = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        cfg.Prefix + "_modules",
		Help:        "Modules in the last successful compile",
		ConstLabels: constLabels,
	})

	e.enums = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        cfg.Prefix + "_enums",
		Help:        "Enum declarations in the last successful compile",
		ConstLabels: constLabels,
	})

	e.references = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        cfg.Prefix + "_references",
		Help:        "Population paths in the last successful compile",
		ConstLabels: constLabels,
	})

	e.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        cfg.Prefix + "_last_success_timestamp_seconds",
		Help:        "Unix time of the last successful compile",
		ConstLabels: constLabels,
	})

	reg.MustRegister(
		e.compilesTotal,
		e.errorsTotal,
		e.durationSeconds,
		e.modules,
		e.enums,
		e.references,
		e.lastSuccess,
	)

	if cfg.Runtime {
		reg.MustRegister(prometheus.NewGoCollector())
		reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}

	return e
}

// Name returns the exporter name.
func (e *PrometheusExporter) Name() string {
	return "prometheus"
}

// ObserveCompile records a compile run.
func (e *PrometheusExporter) ObserveCompile(stats compiler.Stats, err error) {
	e.durationSeconds.Observe(stats.Duration.Seconds())

	if err != nil {
		e.compilesTotal.WithLabelValues("error").Inc()
		e.errorsTotal.WithLabelValues(ErrorKind(err)).Inc()
		return
	}

	e.compilesTotal.WithLabelValues("success").Inc()
	e.modules.Set(float64(stats.Modules))
	e.enums.Set(float64(stats.Enums))
	e.references.Set(float64(stats.References))
	e.lastSuccess.Set(float64(time.Now().Unix()))
}

// Handler returns the HTTP handler for /metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// WriteTextfile writes the current metrics in text exposition format, for
// node_exporter's textfile collector in one-shot CLI runs.
func (e *PrometheusExporter) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, e.registry)
}

// WithCustomMetric registers a custom metric with the exporter.
func (e *PrometheusExporter) WithCustomMetric(collector prometheus.Collector) error {
	return e.registry.Register(collector)
}
