package profiling

import (
	"context"
	"time"
)

// Kind distinguishes the two finding families.
type Kind string

const (
	KindNPlusOne Kind = "nplus1"
	KindSlow     Kind = "slow"
)

// Label is the human name used in logs and by the load tester.
func (k Kind) Label() string {
	if k == KindNPlusOne {
		return "N+1 Query"
	}
	return "Slow Query"
}

// Finding is one ranked query, addressable by the UUID sent in its header.
type Finding struct {
	ID     string   `json:"id"`
	Kind   Kind     `json:"kind"`
	Rank   int      `json:"rank"`
	SQL    string   `json:"sql"`
	Count  int      `json:"count"`
	TimeMs float64  `json:"time_ms"`
	Stack  []string `json:"stack,omitempty"`
}

// Report is everything the profiler learned about one request.
type Report struct {
	ID          string    `json:"id"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Status      int       `json:"status"`
	QueryCount  int       `json:"query_count"`
	QueryTimeMs float64   `json:"query_time_ms"`
	LateQueries int       `json:"late_queries,omitempty"`
	Findings    []Finding `json:"findings"`
	CreatedAt   time.Time `json:"created_at"`
}

// Finding looks a finding up by its UUID.
func (r Report) Finding(id string) (Finding, bool) {
	for _, f := range r.Findings {
		if f.ID == id {
			return f, true
		}
	}
	return Finding{}, false
}

// Sink receives reports after the response has been produced.
type Sink interface {
	Save(ctx context.Context, r Report) error
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
