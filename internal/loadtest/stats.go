package loadtest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

type entryKey struct {
	Type string
	Name string
}

type entry struct {
	latencies []float64
	failures  int
}

// Stats aggregates response times per (type, name), the way locust keys
// its request statistics.
type Stats struct {
	mu      sync.Mutex
	entries map[entryKey]*entry
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{entries: map[entryKey]*entry{}}
}

// Record adds one observation. Failed observations count but carry no
// response time.
func (s *Stats) Record(typ, name string, latency time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey{Type: typ, Name: name}
	e := s.entries[k]
	if e == nil {
		e = &entry{}
		s.entries[k] = e
	}
	if failed {
		e.failures++
		return
	}
	e.latencies = append(e.latencies, float64(latency.Microseconds())/1000)
}

// EntrySummary is the aggregate for one (type, name).
type EntrySummary struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	AvgMs    float64 `json:"avg_ms"`
	MedianMs float64 `json:"median_ms"`
	P99Ms    float64 `json:"p99_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
}

// Snapshot summarizes every entry, ordered by type then name.
func (s *Stats) Snapshot() []EntrySummary {
	s.mu.Lock()
	out := make([]EntrySummary, 0, len(s.entries))
	for k, e := range s.entries {
		sorted := append([]float64(nil), e.latencies...)
		sum := EntrySummary{Type: k.Type, Name: k.Name, Count: len(sorted) + e.failures, Failures: e.failures}
		if len(sorted) > 0 {
			sort.Float64s(sorted)
			sum.AvgMs = stat.Mean(sorted, nil)
			sum.MedianMs = stat.Quantile(0.5, stat.Empirical, sorted, nil)
			sum.P99Ms = stat.Quantile(0.99, stat.Empirical, sorted, nil)
			sum.MinMs = sorted[0]
			sum.MaxMs = sorted[len(sorted)-1]
		}
		out = append(out, sum)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ReportLine formats an entry as one "Custom Report" log line.
func ReportLine(e EntrySummary) string {
	return fmt.Sprintf("Custom Report - %s | Avg Response Time: %.2f ms | Median Response Time: %.2f ms | 99%% Response Time: %.2f ms",
		e.Name, e.AvgMs, e.MedianMs, e.P99Ms)
}

// LogReport writes one line per entry that has response times.
func LogReport(logger *zap.Logger, entries []EntrySummary) {
	for _, e := range entries {
		if e.Name == "" || e.Count == e.Failures {
			continue
		}
		logger.Info(ReportLine(e), zap.String("type", e.Type), zap.Int("count", e.Count), zap.Int("failures", e.Failures))
	}
}
