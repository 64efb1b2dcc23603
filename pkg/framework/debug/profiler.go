package debug

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Profiler collects timing statistics for named sections, such as the phases
// of an editor tick.
type Profiler struct {
	mu           sync.Mutex
	measurements map[string]*Measurement
	enabled      atomic.Bool
	maxSamples   int
}

// Measurement holds timing statistics for a profiled section.
type Measurement struct {
	Name  string
	Count uint64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Last  time.Duration

	samples []time.Duration // ring buffer of recent timings
	next    int
}

// NewProfiler creates a profiler keeping up to maxSamples recent timings per section.
func NewProfiler(maxSamples int) *Profiler {
	if maxSamples < 1 {
		maxSamples = 1
	}
	p := &Profiler{
		measurements: make(map[string]*Measurement),
		maxSamples:   maxSamples,
	}
	p.enabled.Store(true)
	return p
}

// SetEnabled enables or disables profiling.
func (p *Profiler) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

// Start begins timing a named section; call the returned func to stop.
func (p *Profiler) Start(name string) func() {
	if p == nil || !p.enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() { p.Record(name, time.Since(start)) }
}

// Record adds one timing for name.
func (p *Profiler) Record(name string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.measurements[name]
	if !ok {
		m = &Measurement{Name: name, Min: elapsed, samples: make([]time.Duration, 0, p.maxSamples)}
		p.measurements[name] = m
	}
	m.Count++
	m.Total += elapsed
	m.Last = elapsed
	if elapsed < m.Min {
		m.Min = elapsed
	}
	if elapsed > m.Max {
		m.Max = elapsed
	}
	if len(m.samples) < p.maxSamples {
		m.samples = append(m.samples, elapsed)
	} else {
		m.samples[m.next] = elapsed
	}
	m.next = (m.next + 1) % p.maxSamples
}

// Measurement returns a copy of the statistics for name.
func (p *Profiler) Measurement(name string) (Measurement, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.measurements[name]
	if !ok {
		return Measurement{}, false
	}
	c := *m
	c.samples = append([]time.Duration(nil), m.samples...)
	return c, true
}

// Reset clears all measurements.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.measurements = make(map[string]*Measurement)
}

// Report renders all measurements sorted by name.
func (p *Profiler) Report() string {
	p.mu.Lock()
	names := make([]string, 0, len(p.measurements))
	for name := range p.measurements {
		names = append(names, name)
	}
	p.mu.Unlock()

	if len(names) == 0 {
		return "No measurements recorded"
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		m, _ := p.Measurement(name)
		fmt.Fprintf(&sb, "%s: count=%d avg=%v min=%v max=%v p95=%v\n",
			name, m.Count, m.Average(), m.Min, m.Max, m.Percentile(95))
	}
	return sb.String()
}

// Average returns the mean duration.
func (m Measurement) Average() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.Total / time.Duration(m.Count)
}

// Percentile returns the p-th percentile of the recent samples.
func (m Measurement) Percentile(p float64) time.Duration {
	if len(m.samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), m.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
