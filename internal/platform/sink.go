package platform

import (
	"sort"
	"sync"
)

// MetricSummary aggregates the events recorded for one metric.
type MetricSummary struct {
	Metric  string  `json:"metric" yaml:"metric"`
	Count   int     `json:"count" yaml:"count"`
	Numeric int     `json:"numeric" yaml:"numeric"`
	Mean    float64 `json:"mean" yaml:"mean"`
}

// MemorySink keeps every event in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Record(e Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Count returns how many events were recorded for metric.
func (s *MemorySink) Count(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Metric == metric {
			n++
		}
	}
	return n
}

// Summary aggregates per metric, sorted by metric key.
func (s *MemorySink) Summary() []MetricSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	byMetric := make(map[string]*MetricSummary)
	sums := make(map[string]float64)
	for _, e := range s.events {
		m, ok := byMetric[e.Metric]
		if !ok {
			m = &MetricSummary{Metric: e.Metric}
			byMetric[e.Metric] = m
		}
		m.Count++
		if e.Value != nil {
			m.Numeric++
			sums[e.Metric] += *e.Value
		}
	}

	out := make([]MetricSummary, 0, len(byMetric))
	for metric, m := range byMetric {
		if m.Numeric > 0 {
			m.Mean = sums[metric] / float64(m.Numeric)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}
