package taskflow

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsCollector exposes executor counters as a prometheus.Collector.
// Grounded on 88lin-divinesense's ai/metrics/prometheus_test.go: a
// small struct of atomic counters registered once and scraped via
// Describe/Collect.
type metricsCollector struct {
	tasksExecuted     atomic.Int64
	stealsSucceeded   atomic.Int64
	topologiesRunning atomic.Int64
	activeWorkers     atomic.Int64

	numWorkers int

	tasksDesc     *prometheus.Desc
	stealsDesc    *prometheus.Desc
	topoDesc      *prometheus.Desc
	activeDesc    *prometheus.Desc
	capacityDesc  *prometheus.Desc
}

func newMetricsCollector(numWorkers int) *metricsCollector {
	return &metricsCollector{
		numWorkers: numWorkers,
		tasksDesc: prometheus.NewDesc(
			"taskflow_tasks_executed_total", "Total number of task bodies executed.", nil, nil),
		stealsDesc: prometheus.NewDesc(
			"taskflow_steals_succeeded_total", "Total number of successful steal operations.", nil, nil),
		topoDesc: prometheus.NewDesc(
			"taskflow_topologies_running", "Number of topologies currently executing.", nil, nil),
		activeDesc: prometheus.NewDesc(
			"taskflow_active_workers", "Number of workers currently executing a task body.", nil, nil),
		capacityDesc: prometheus.NewDesc(
			"taskflow_worker_capacity", "Configured worker pool size.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (m *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.tasksDesc
	ch <- m.stealsDesc
	ch <- m.topoDesc
	ch <- m.activeDesc
	ch <- m.capacityDesc
}

// Collect implements prometheus.Collector.
func (m *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(m.tasksDesc, prometheus.CounterValue, float64(m.tasksExecuted.Load()))
	ch <- prometheus.MustNewConstMetric(m.stealsDesc, prometheus.CounterValue, float64(m.stealsSucceeded.Load()))
	ch <- prometheus.MustNewConstMetric(m.topoDesc, prometheus.GaugeValue, float64(m.topologiesRunning.Load()))
	ch <- prometheus.MustNewConstMetric(m.activeDesc, prometheus.GaugeValue, float64(m.activeWorkers.Load()))
	ch <- prometheus.MustNewConstMetric(m.capacityDesc, prometheus.GaugeValue, float64(m.numWorkers))
}
