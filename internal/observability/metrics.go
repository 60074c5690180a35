package observability

import (
	"sort"
	"sync"
	"time"
)

// MetricType categorizes what is being measured.
type MetricType string

const (
	MetricDispatch    MetricType = "dispatch"
	MetricLatency     MetricType = "latency_us"
	MetricErrors      MetricType = "errors"
	MetricUnsupported MetricType = "unsupported"
	MetricPush        MetricType = "push"
	MetricZIndex      MetricType = "z_index"
)

// Counter names shared by the dispatcher, router and transport.
const (
	CounterMessages    = "messages"
	CounterUnsupported = "unsupported"
	CounterHandlerErrs = "handler_errors"
	CounterPushes      = "pushes"
	CounterReconnects  = "reconnects"
)

// MetricPoint is a single recorded data point.
type MetricPoint struct {
	Type      MetricType `json:"type"`
	Value     float64    `json:"value"`
	Labels    Labels     `json:"labels,omitempty"` // e.g. {"command": "@PPN"}
	Timestamp time.Time  `json:"timestamp"`
}

// Labels are key-value metadata on a metric.
type Labels map[string]string

// MetricsCollector keeps named counters and the most recent points in a
// fixed-size ring.
type MetricsCollector struct {
	mu       sync.RWMutex
	ring     []MetricPoint
	next     int // slot the next point goes to
	full     bool
	counters map[string]int64
	now      func() time.Time
}

// NewMetricsCollector creates a collector holding up to size points.
func NewMetricsCollector(size int) *MetricsCollector {
	if size <= 0 {
		size = 10000
	}
	return &MetricsCollector{
		ring:     make([]MetricPoint, size),
		counters: make(map[string]int64),
		now:      time.Now,
	}
}

// Record adds a point, overwriting the oldest once the ring is full.
func (c *MetricsCollector) Record(mt MetricType, value float64, labels Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ring[c.next] = MetricPoint{Type: mt, Value: value, Labels: labels, Timestamp: c.now()}
	c.next++
	if c.next == len(c.ring) {
		c.next = 0
		c.full = true
	}
}

// Increment bumps a named counter.
func (c *MetricsCollector) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
}

// Counter returns the current value of a counter.
func (c *MetricsCollector) Counter(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Snapshot returns a copy of all counters.
func (c *MetricsCollector) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		snap[k] = v
	}
	return snap
}

// each calls fn on the points of type mt recorded at or after since,
// oldest first. The caller holds the read lock.
func (c *MetricsCollector) each(mt MetricType, since time.Time, fn func(MetricPoint)) {
	start, n := 0, c.next
	if c.full {
		start, n = c.next, len(c.ring)
	}
	for i := 0; i < n; i++ {
		p := c.ring[(start+i)%len(c.ring)]
		if p.Type != mt || (!since.IsZero() && p.Timestamp.Before(since)) {
			continue
		}
		fn(p)
	}
}

func (c *MetricsCollector) query(mt MetricType, since time.Time) []MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []MetricPoint
	c.each(mt, since, func(p MetricPoint) { out = append(out, p) })
	return out
}

// Summary is aggregate statistics over a set of points.
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summarize aggregates the points of type mt recorded since. A zero since
// covers the whole ring.
func (c *MetricsCollector) Summarize(mt MetricType, since time.Time) Summary {
	var values []float64
	for _, p := range c.query(mt, since) {
		values = append(values, p.Value)
	}
	return summarize(values)
}

// SummarizeBy aggregates the points of type mt grouped by the value of
// label key. Points without the label are skipped.
func (c *MetricsCollector) SummarizeBy(mt MetricType, key string, since time.Time) map[string]Summary {
	groups := make(map[string][]float64)
	c.mu.RLock()
	c.each(mt, since, func(p MetricPoint) {
		if v, ok := p.Labels[key]; ok {
			groups[v] = append(groups[v], p.Value)
		}
	})
	c.mu.RUnlock()

	out := make(map[string]Summary, len(groups))
	for v, values := range groups {
		out[v] = summarize(values)
	}
	return out
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sort.Float64s(values)
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return Summary{
		Count: len(values),
		Sum:   sum,
		Mean:  sum / float64(len(values)),
		Min:   values[0],
		Max:   values[len(values)-1],
		P50:   percentile(values, 0.50),
		P95:   percentile(values, 0.95),
		P99:   percentile(values, 0.99),
	}
}

// percentile interpolates the p-th percentile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
