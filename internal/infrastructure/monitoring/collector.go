package monitoring

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// defaultMaxSamples caps the raw sample ring; oldest entries are
	// evicted first.
	defaultMaxSamples = 10000

	// defaultMaxPerHistogram caps each histogram's recent-value list.
	defaultMaxPerHistogram = 1000
)

// Tags label a metric. The alias keeps collector methods assignable to the
// resilience.MetricsSink interface.
type Tags = map[string]string

// Sample is one raw, timestamped measurement.
type Sample struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Tags      Tags      `json:"tags,omitempty"`
}

// SummaryStats aggregates raw samples.
type SummaryStats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// HistogramStats summarizes a histogram's recent values.
type HistogramStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Collector is the in-process observability sink: a bounded ring of raw
// samples, cumulative counters keyed by name+tags, and capped per-key
// histograms queried via sorted-percentile computation. All methods are
// safe for concurrent use.
type Collector struct {
	mu              sync.RWMutex
	maxSamples      int
	maxPerHistogram int
	samples         *ring
	counters        map[string]float64
	histograms      map[string][]float64
}

// NewCollector creates a collector with the default caps.
func NewCollector() *Collector {
	return NewCollectorWithCaps(defaultMaxSamples, defaultMaxPerHistogram)
}

// NewCollectorWithCaps creates a collector with explicit ring bounds.
func NewCollectorWithCaps(maxSamples, maxPerHistogram int) *Collector {
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	if maxPerHistogram <= 0 {
		maxPerHistogram = defaultMaxPerHistogram
	}
	return &Collector{
		maxSamples:      maxSamples,
		maxPerHistogram: maxPerHistogram,
		samples:         newRing(maxSamples),
		counters:        make(map[string]float64),
		histograms:      make(map[string][]float64),
	}
}

// Record appends a timestamped sample, evicting the oldest past the cap.
func (c *Collector) Record(name string, value float64, tags Tags) {
	sample := Sample{Name: name, Value: value, Timestamp: time.Now(), Tags: tags}

	c.mu.Lock()
	c.samples.push(sample)
	c.mu.Unlock()
}

// IncrementCounter accumulates delta into the counter keyed by name and
// serialized tags.
func (c *Collector) IncrementCounter(name string, delta float64, tags Tags) {
	k := key(name, tags)

	c.mu.Lock()
	c.counters[k] += delta
	c.mu.Unlock()
}

// RecordHistogram appends a value to the keyed histogram, evicting the
// oldest past the per-key cap.
func (c *Collector) RecordHistogram(name string, value float64, tags Tags) {
	k := key(name, tags)

	c.mu.Lock()
	values := c.histograms[k]
	if len(values) >= c.maxPerHistogram {
		copy(values, values[1:])
		values[len(values)-1] = value
	} else {
		values = append(values, value)
	}
	c.histograms[k] = values
	c.mu.Unlock()
}

// Counter returns the accumulated value for name+tags.
func (c *Collector) Counter(name string, tags Tags) float64 {
	k := key(name, tags)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[k]
}

// Counters returns a copy of every counter, keyed by serialized name+tags.
func (c *Collector) Counters() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Summary aggregates raw samples matching the name; non-nil tags narrow
// the match to samples carrying every given pair.
func (c *Collector) Summary(name string, tags Tags) SummaryStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := SummaryStats{Min: math.Inf(1), Max: math.Inf(-1)}
	c.samples.each(func(s Sample) {
		if s.Name != name || !tagsMatch(s.Tags, tags) {
			return
		}
		stats.Count++
		stats.Sum += s.Value
		stats.Min = math.Min(stats.Min, s.Value)
		stats.Max = math.Max(stats.Max, s.Value)
	})

	if stats.Count == 0 {
		return SummaryStats{}
	}
	stats.Avg = stats.Sum / float64(stats.Count)
	return stats
}

// HistogramStats computes min/max/avg and p50/p95/p99 over the keyed
// histogram. The second return is false when no values were recorded.
func (c *Collector) HistogramStats(name string, tags Tags) (HistogramStats, bool) {
	k := key(name, tags)

	c.mu.RLock()
	values := c.histograms[k]
	sorted := make([]float64, len(values))
	copy(sorted, values)
	c.mu.RUnlock()

	if len(sorted) == 0 {
		return HistogramStats{}, false
	}
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return HistogramStats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
	}, true
}

// Reset drops all recorded data, used by tests and shutdown.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.samples = newRing(c.maxSamples)
	c.counters = make(map[string]float64)
	c.histograms = make(map[string][]float64)
	c.mu.Unlock()
}

// percentile indexes a sorted slice at ceil(p/100*n)-1, clamped to >= 0.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// key serializes name+tags into a stable map key. ConfigStd sorts map
// keys, so equal tag sets always produce the same key.
func key(name string, tags Tags) string {
	if len(tags) == 0 {
		return name
	}
	encoded, err := sonic.ConfigStd.MarshalToString(tags)
	if err != nil {
		return name
	}
	return name + "|" + encoded
}

// tagsMatch reports whether have carries every pair in want. A nil or
// empty want matches everything.
func tagsMatch(have, want Tags) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// ring is a fixed-capacity circular buffer of samples.
type ring struct {
	buf   []Sample
	next  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Sample, capacity)}
}

func (r *ring) push(s Sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) len() int {
	return r.count
}

// each visits samples oldest-first.
func (r *ring) each(fn func(Sample)) {
	start := r.next - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		fn(r.buf[(start+i)%len(r.buf)])
	}
}
