package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector adapts a Collector's snapshot into the
// prometheus.Collector interface so it can be registered with a
// prometheus.Registry and served at /metrics.
type PrometheusCollector struct {
	collector *Collector

	jitterMean   *prometheus.Desc
	jitterP99    *prometheus.Desc
	jitterCount  *prometheus.Desc
	serviceMean  *prometheus.Desc
	serviceP99   *prometheus.Desc
	serviceCount *prometheus.Desc
}

// NewPrometheusCollector wraps collector for Prometheus scraping.
func NewPrometheusCollector(collector *Collector) *PrometheusCollector {
	return &PrometheusCollector{
		collector: collector,
		jitterMean: prometheus.NewDesc(
			"homeiqsim_scheduler_jitter_mean_seconds",
			"Mean gap between a scheduled task's run_at and its actual fire time.",
			nil, nil,
		),
		jitterP99: prometheus.NewDesc(
			"homeiqsim_scheduler_jitter_p99_seconds",
			"P99 gap between a scheduled task's run_at and its actual fire time.",
			nil, nil,
		),
		jitterCount: prometheus.NewDesc(
			"homeiqsim_scheduler_jitter_count_total",
			"Number of scheduler firings recorded.",
			nil, nil,
		),
		serviceMean: prometheus.NewDesc(
			"homeiqsim_service_call_latency_mean_seconds",
			"Mean service-call handler latency by domain.",
			[]string{"domain"}, nil,
		),
		serviceP99: prometheus.NewDesc(
			"homeiqsim_service_call_latency_p99_seconds",
			"P99 service-call handler latency by domain.",
			[]string{"domain"}, nil,
		),
		serviceCount: prometheus.NewDesc(
			"homeiqsim_service_call_count_total",
			"Number of service calls handled by domain.",
			[]string{"domain"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.jitterMean
	ch <- p.jitterP99
	ch <- p.jitterCount
	ch <- p.serviceMean
	ch <- p.serviceP99
	ch <- p.serviceCount
}

// Collect implements prometheus.Collector.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := p.collector.GetSnapshot()

	ch <- prometheus.MustNewConstMetric(p.jitterMean, prometheus.GaugeValue, snap.SchedulerJitter.Mean.Seconds())
	ch <- prometheus.MustNewConstMetric(p.jitterP99, prometheus.GaugeValue, snap.SchedulerJitter.P99.Seconds())
	ch <- prometheus.MustNewConstMetric(p.jitterCount, prometheus.CounterValue, float64(snap.SchedulerJitter.Count))

	for domain, dist := range snap.ServiceLatency {
		ch <- prometheus.MustNewConstMetric(p.serviceMean, prometheus.GaugeValue, dist.Mean.Seconds(), domain)
		ch <- prometheus.MustNewConstMetric(p.serviceP99, prometheus.GaugeValue, dist.P99.Seconds(), domain)
		ch <- prometheus.MustNewConstMetric(p.serviceCount, prometheus.CounterValue, float64(dist.Count), domain)
	}
}
