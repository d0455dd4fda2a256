package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "containr"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	refreshDuration *prom.HistogramVec
	refreshResults  *prom.CounterVec
	mutationResults *prom.CounterVec
	tasksInFlight   prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		refreshDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of daemon list calls by resource kind",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
		refreshResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_results_total",
			Help:      "Refresh outcomes by resource kind",
		}, []string{"kind", "result"}),
		mutationResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_results_total",
			Help:      "Container start/stop outcomes",
		}, []string{"action", "result"}),
		tasksInFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Background refresh and mutation tasks currently running",
		}),
	}
	reg.MustRegister(pr.refreshDuration, pr.refreshResults, pr.mutationResults, pr.tasksInFlight)
	return pr
}

func (p *PrometheusRecorder) ObserveRefreshDuration(kind string, d time.Duration) {
	if p == nil {
		return
	}
	p.refreshDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRefreshResult(kind string, result ResultLabel) {
	if p == nil {
		return
	}
	p.refreshResults.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) IncMutationResult(action string, result ResultLabel) {
	if p == nil {
		return
	}
	p.mutationResults.WithLabelValues(action, string(result)).Inc()
}

func (p *PrometheusRecorder) TaskStarted() {
	if p == nil {
		return
	}
	p.tasksInFlight.Inc()
}

func (p *PrometheusRecorder) TaskDone() {
	if p == nil {
		return
	}
	p.tasksInFlight.Dec()
}
