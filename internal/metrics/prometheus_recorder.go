package metrics

import (
	"errors"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	stageResults  *prom.CounterVec
	runOutcome    *prom.CounterVec
	uploadFiles   prom.Histogram
	uploadBytes   prom.Histogram
}

// NewPrometheusRecorder constructs and registers Prometheus metrics. Calling
// it twice on the same registry reuses the already registered collectors.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.stageDuration = register(reg, prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "blogpub",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual publish stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"}))
	pr.runDuration = register[prom.Histogram](reg, prom.NewHistogram(prom.HistogramOpts{
		Namespace: "blogpub",
		Name:      "run_duration_seconds",
		Help:      "Total publish run duration",
		Buckets:   prom.DefBuckets,
	}))
	pr.stageResults = register(reg, prom.NewCounterVec(prom.CounterOpts{
		Namespace: "blogpub",
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"}))
	pr.runOutcome = register(reg, prom.NewCounterVec(prom.CounterOpts{
		Namespace: "blogpub",
		Name:      "run_outcomes_total",
		Help:      "Publish run outcomes by final status",
	}, []string{"outcome"}))
	pr.uploadFiles = register[prom.Histogram](reg, prom.NewHistogram(prom.HistogramOpts{
		Namespace: "blogpub",
		Name:      "upload_files",
		Help:      "Files uploaded per successful publish",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000},
	}))
	pr.uploadBytes = register[prom.Histogram](reg, prom.NewHistogram(prom.HistogramOpts{
		Namespace: "blogpub",
		Name:      "upload_bytes",
		Help:      "Bytes uploaded per successful publish",
		Buckets:   prom.ExponentialBuckets(1024, 8, 8),
	}))
	return pr
}

// register adds c to the registry, or hands back the collector that is
// already registered under the same descriptor.
func register[C prom.Collector](reg *prom.Registry, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prom.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector.(C)
	}
	panic(err)
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveUpload(files int, bytes int64) {
	if p == nil || p.uploadFiles == nil {
		return
	}
	p.uploadFiles.Observe(float64(files))
	p.uploadBytes.Observe(float64(bytes))
}
