package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	buildDuration  *prom.HistogramVec
	buildOutcome   *prom.CounterVec
	coalesced      *prom.CounterVec
	requeued       *prom.CounterVec
	modulesRebuilt *prom.CounterVec
	liveClients    prom.Gauge
	broadcasts     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "themekit",
			Name:      "build_duration_seconds",
			Help:      "Duration of domain builds",
			Buckets:   prom.DefBuckets,
		}, []string{"domain", "status"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "themekit",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by domain and final status",
		}, []string{"domain", "status"})
		pr.coalesced = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "themekit",
			Name:      "events_coalesced_total",
			Help:      "Watch events absorbed into an already-pending build",
		}, []string{"domain"})
		pr.requeued = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "themekit",
			Name:      "builds_requeued_total",
			Help:      "Follow-up builds by cause",
		}, []string{"domain", "cause"})
		pr.modulesRebuilt = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "themekit",
			Name:      "modules_rebuilt_total",
			Help:      "Asset modules rebuilt by incremental updates",
		}, []string{"domain"})
		pr.liveClients = prom.NewGauge(prom.GaugeOpts{
			Namespace: "themekit",
			Name:      "livereload_clients",
			Help:      "Currently connected live-update clients",
		})
		pr.broadcasts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "themekit",
			Name:      "livereload_broadcasts_total",
			Help:      "Live-update broadcasts by message type",
		}, []string{"type"})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.coalesced, pr.requeued, pr.modulesRebuilt, pr.liveClients, pr.broadcasts)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuild(domain, status string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(domain, status).Observe(d.Seconds())
	p.buildOutcome.WithLabelValues(domain, status).Inc()
}

func (p *PrometheusRecorder) IncCoalesced(domain string, dropped int) {
	if p == nil || p.coalesced == nil {
		return
	}
	p.coalesced.WithLabelValues(domain).Add(float64(dropped))
}

func (p *PrometheusRecorder) IncBuildRequeued(domain, cause string) {
	if p == nil || p.requeued == nil {
		return
	}
	p.requeued.WithLabelValues(domain, cause).Inc()
}

func (p *PrometheusRecorder) IncModulesRebuilt(domain string, n int) {
	if p == nil || p.modulesRebuilt == nil {
		return
	}
	p.modulesRebuilt.WithLabelValues(domain).Add(float64(n))
}

func (p *PrometheusRecorder) SetLiveClients(n int) {
	if p == nil || p.liveClients == nil {
		return
	}
	p.liveClients.Set(float64(n))
}

func (p *PrometheusRecorder) IncBroadcast(kind string) {
	if p == nil || p.broadcasts == nil {
		return
	}
	p.broadcasts.WithLabelValues(kind).Inc()
}
