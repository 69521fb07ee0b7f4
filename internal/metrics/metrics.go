package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the application counters and gauges, exposed in Prometheus
// text format.
type Metrics struct {
	mu sync.RWMutex

	counters map[string]*uint64
	gauges   map[string]func() float64

	startTime time.Time
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		counters:  make(map[string]*uint64),
		gauges:    make(map[string]func() float64),
		startTime: time.Now(),
	}
}

// global metrics instance
var defaultMetrics = New()

// Default returns the default metrics instance
func Default() *Metrics {
	return defaultMetrics
}

// IncrCounter increments a named counter
func (m *Metrics) IncrCounter(name string) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		if c, ok = m.counters[name]; !ok {
			c = new(uint64)
			m.counters[name] = c
		}
		m.mu.Unlock()
	}
	atomic.AddUint64(c, 1)
}

// RegisterGauge registers a callback sampled at scrape time
func (m *Metrics) RegisterGauge(name string, fn func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = fn
}

// Handler serves the metrics in Prometheus text format
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder

		m.mu.RLock()
		names := make([]string, 0, len(m.counters))
		for name := range m.counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "# TYPE %s counter\n%s %d\n", name, name, atomic.LoadUint64(m.counters[name]))
		}

		gaugeNames := make([]string, 0, len(m.gauges))
		for name := range m.gauges {
			gaugeNames = append(gaugeNames, name)
		}
		sort.Strings(gaugeNames)
		for _, name := range gaugeNames {
			fmt.Fprintf(&b, "# TYPE %s gauge\n%s %g\n", name, name, m.gauges[name]())
		}
		m.mu.RUnlock()

		fmt.Fprintf(&b, "# TYPE uptime_seconds gauge\nuptime_seconds %g\n", time.Since(m.startTime).Seconds())

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(b.String()))
	}
}

// Package-level helpers against the default instance

func IncrCounter(name string) {
	defaultMetrics.IncrCounter(name)
}

func RegisterGauge(name string, fn func() float64) {
	defaultMetrics.RegisterGauge(name, fn)
}
