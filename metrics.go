package slotpool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports slot table occupancy to prometheus. Pools are not safe for
// concurrent use, so the simulation goroutine calls Observe to take a
// snapshot, and scrapes only ever read the latest snapshot.
type Metrics struct {
	capacity *prometheus.Desc
	live     *prometheus.Desc
	acquires *prometheus.Desc
	releases *prometheus.Desc

	mu       sync.Mutex
	snapshot []tableSnapshot
}

type tableSnapshot struct {
	name     string
	capacity int
	live     int
	stats    Stats
}

// NewMetrics creates the collector and registers it with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"pool"}
	m := &Metrics{
		capacity: prometheus.NewDesc("slotpool_capacity", "Number of slots in the pool.", labels, nil),
		live:     prometheus.NewDesc("slotpool_live", "Number of live slots in the pool.", labels, nil),
		acquires: prometheus.NewDesc("slotpool_acquires_total", "Slots acquired since start.", labels, nil),
		releases: prometheus.NewDesc("slotpool_releases_total", "Slots released since start.", labels, nil),
	}
	if err := reg.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe snapshots every table in r.
func (m *Metrics) Observe(r *Registry) {
	tables := r.Tables()
	snapshot := make([]tableSnapshot, 0, len(tables))
	for _, t := range tables {
		snapshot = append(snapshot, tableSnapshot{
			name:     t.Name(),
			capacity: t.Cap(),
			live:     t.Len(),
			stats:    t.Stats(),
		})
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.capacity
	ch <- m.live
	ch <- m.acquires
	ch <- m.releases
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.mu.Lock()
	snapshot := m.snapshot
	m.mu.Unlock()

	for _, s := range snapshot {
		ch <- prometheus.MustNewConstMetric(m.capacity, prometheus.GaugeValue, float64(s.capacity), s.name)
		ch <- prometheus.MustNewConstMetric(m.live, prometheus.GaugeValue, float64(s.live), s.name)
		ch <- prometheus.MustNewConstMetric(m.acquires, prometheus.CounterValue, float64(s.stats.Acquires), s.name)
		ch <- prometheus.MustNewConstMetric(m.releases, prometheus.CounterValue, float64(s.stats.Releases), s.name)
	}
}
