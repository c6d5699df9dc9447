// Package metrics exposes decode and service counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the text exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics are the decoder's own series.
type Metrics struct {
	Decodes         *prometheus.CounterVec   // labels: driver, outcome
	DecodeDuration  *prometheus.HistogramVec // labels: driver
	Published       *prometheus.CounterVec   // labels: result=ok|error
	RateLimited     prometheus.Counter
	DriversLoaded   prometheus.Gauge
	DriverLintCount prometheus.Gauge
}

// New registers and returns the decoder metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gowmbus_decode_total",
			Help: "Analysed telegrams by driver and outcome.",
		}, []string{"driver", "outcome"}),
		DecodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gowmbus_decode_duration_seconds",
			Help:    "Time spent analysing one telegram.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"driver"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gowmbus_publish_total",
			Help: "Readouts handed to the redis sink.",
		}, []string{"result"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gowmbus_http_rate_limited_total",
			Help: "Decode requests rejected by the rate limiter.",
		}),
		DriversLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gowmbus_drivers_loaded",
			Help: "Drivers present in the registry.",
		}),
		DriverLintCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gowmbus_driver_lint_warnings",
			Help: "Warnings reported by the driver table lint at startup.",
		}),
	}
	reg.MustRegister(m.Decodes, m.DecodeDuration, m.Published, m.RateLimited, m.DriversLoaded, m.DriverLintCount)
	return m
}

// ObserveDecode records one analysis.
func (m *Metrics) ObserveDecode(driver, outcome string, elapsed time.Duration) {
	m.Decodes.WithLabelValues(driver, outcome).Inc()
	m.DecodeDuration.WithLabelValues(driver).Observe(elapsed.Seconds())
}

// ObservePublish records one sink delivery.
func (m *Metrics) ObservePublish(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Published.WithLabelValues(result).Inc()
}
