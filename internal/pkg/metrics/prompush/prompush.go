// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A CLI run is short lived, so metrics are pushed once on
// Flush instead of being scraped.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/anicoll/airquality-integration/internal/pkg/metrics"
)

type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter     *prometheus.CounterVec
	stepDuration    *prometheus.SummaryVec
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retryCounter    prometheus.Counter
	recordCounter   *prometheus.CounterVec
}

func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "airquality"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RequestsTotal,
			Help: "HTTP attempts against the measurement API by status code.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.RequestDuration,
			Help:    "HTTP attempt latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		retryCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.RetriesTotal,
			Help: "Retries after transient API failures.",
		}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Rows handled by kind (fetched, skipped, archived, checked).",
		}, []string{"kind"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":     b.stepCounter,
		"step summary":     b.stepDuration,
		"request counter":  b.requestCounter,
		"request duration": b.requestDuration,
		"retry counter":    b.retryCounter,
		"record counter":   b.recordCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RequestsTotal:
		b.requestCounter.WithLabelValues(labels["status"]).Add(delta)
	case metrics.RetriesTotal:
		b.retryCounter.Add(delta)
	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.RequestDuration:
		b.requestDuration.WithLabelValues(labels["status"]).Observe(value)
	}
}

// Flush pushes the registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
