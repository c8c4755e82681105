// Package profiling turns the SQL recorded while serving a request into
// response headers, log lines and stored reports.
package profiling

import (
	"sort"
	"time"

	"github.com/yevheniidehtiar/locust-love-django/internal/sqltrace"
)

// QueryGroup aggregates every execution of one statement text.
type QueryGroup struct {
	SQL       string
	Count     int
	TotalTime time.Duration
	Stack     []string
	IsSelect  bool
}

// Analysis is the outcome of grouping and ranking a request's queries.
type Analysis struct {
	NPlusOne  []QueryGroup
	Slow      []sqltrace.Query
	Count     int
	TotalTime time.Duration
}

// Analyze groups queries by exact statement text, keeps groups executed
// more than once ordered by count, and ranks individual queries by
// duration. Ties keep execution order. Zero or negative limits select
// nothing.
func Analyze(queries []sqltrace.Query, nplus1Limit, slowLimit int) Analysis {
	a := Analysis{Count: len(queries)}
	index := make(map[string]int)
	var groups []QueryGroup
	for _, q := range queries {
		a.TotalTime += q.Duration
		i, ok := index[q.SQL]
		if !ok {
			index[q.SQL] = len(groups)
			groups = append(groups, QueryGroup{
				SQL:       q.SQL,
				Count:     1,
				TotalTime: q.Duration,
				Stack:     append([]string(nil), q.Stack...),
				IsSelect:  q.IsSelect,
			})
			continue
		}
		g := &groups[i]
		g.Count++
		g.TotalTime += q.Duration
		g.Stack = append(g.Stack, q.Stack...)
	}

	for _, g := range groups {
		if g.Count > 1 {
			a.NPlusOne = append(a.NPlusOne, g)
		}
	}
	sort.SliceStable(a.NPlusOne, func(i, j int) bool { return a.NPlusOne[i].Count > a.NPlusOne[j].Count })
	a.NPlusOne = truncate(a.NPlusOne, nplus1Limit)

	a.Slow = append([]sqltrace.Query(nil), queries...)
	sort.SliceStable(a.Slow, func(i, j int) bool { return a.Slow[i].Duration > a.Slow[j].Duration })
	a.Slow = truncate(a.Slow, slowLimit)
	return a
}

func truncate[T any](items []T, limit int) []T {
	if limit < 0 {
		limit = 0
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
