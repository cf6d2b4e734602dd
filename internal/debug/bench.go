package debug

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Measurement is one recorded duration.
type Measurement struct {
	Name     string
	Duration time.Duration
	Metadata map[string]string
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s: %.4fs", m.Name, m.Duration.Seconds())
}

// Tracker collects named timings for a run.
type Tracker struct {
	mu      sync.Mutex
	results []Measurement
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Start begins a measurement; calling the returned func records it.
func (t *Tracker) Start(name string, metadata map[string]string) func() {
	if t == nil {
		return func() {}
	}
	started := t.now()
	return func() {
		t.Add(Measurement{Name: name, Duration: t.now().Sub(started), Metadata: metadata})
	}
}

func (t *Tracker) Add(m Measurement) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.results = append(t.results, m)
	t.mu.Unlock()
}

// Results returns a copy of the recorded measurements.
func (t *Tracker) Results() []Measurement {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Measurement, len(t.results))
	copy(out, t.results)
	return out
}

func (t *Tracker) Total() time.Duration {
	var total time.Duration
	for _, m := range t.Results() {
		total += m.Duration
	}
	return total
}

func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.results = nil
	t.mu.Unlock()
}

// Summary renders all measurements in recording order.
func (t *Tracker) Summary() string {
	results := t.Results()
	if len(results) == 0 {
		return "No benchmarks recorded."
	}

	var b strings.Builder
	b.WriteString("Performance Benchmark Summary:\n")
	b.WriteString("=================================\n")
	for _, m := range results {
		b.WriteString(m.String())
		b.WriteString("\n")
		if len(m.Metadata) > 0 {
			keys := make([]string, 0, len(m.Metadata))
			for k := range m.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "  - %s: %s\n", k, m.Metadata[k])
			}
		}
	}
	b.WriteString("=================================\n")
	fmt.Fprintf(&b, "Total execution time: %.4fs\n", t.Total().Seconds())
	return b.String()
}
