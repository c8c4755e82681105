package loadtest

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobs "go.uber.org/zap/zaptest/observer"
)

func TestDefaultScenario(t *testing.T) {
	s := DefaultScenario()
	require.NoError(t, s.Validate())
	weights := map[string]int{}
	for _, task := range s.Tasks {
		weights[task.Name] = task.Weight
		assert.Equal(t, http.MethodGet, task.Method)
	}
	assert.Equal(t, map[string]int{
		"authors":             1,
		"books":               2,
		"n-plus-one":          3,
		"optimized":           3,
		"expensive":           3,
		"complex-nested":      3,
		"department-analysis": 3,
	}, weights)
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: smoke
base_url: http://api:8000/
rate: 25
duration: 1m
tasks:
  - name: books
    path: /api/books/
    weight: 2
  - path: /api/examples/n-plus-one/
    method: get
    weight: 1
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "http://api:8000", s.BaseURL)
	assert.Equal(t, 25, s.Rate)
	assert.Equal(t, time.Minute, s.Duration)
	assert.Equal(t, 10*time.Second, s.ReportInterval)
	require.Len(t, s.Tasks, 2)
	assert.Equal(t, "/api/examples/n-plus-one/", s.Tasks[1].Name)
	assert.Equal(t, http.MethodGet, s.Tasks[1].Method)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("base_url: ftp://x\ntasks:\n  - path: nope\n    weight: 0\n"), 0o644))
	_, err = LoadScenario(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be http(s)")
	assert.Contains(t, err.Error(), "path must start with /")
	assert.Contains(t, err.Error(), "positive weight")

	_, err = LoadScenario(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWeightedTargeter(t *testing.T) {
	tasks := []Task{
		{Name: "a", Method: "GET", Path: "/a", Weight: 1},
		{Name: "never", Method: "GET", Path: "/never", Weight: 0},
		{Name: "b", Method: "GET", Path: "/b", Weight: 3},
	}
	tr, err := NewWeightedTargeter("http://h", tasks, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	counts := map[string]int{}
	for i := 0; i < 4000; i++ {
		var tgt vegeta.Target
		require.NoError(t, tr(&tgt))
		counts[tgt.URL]++
	}
	assert.Zero(t, counts["http://h/never"])
	assert.InDelta(t, 3.0, float64(counts["http://h/b"])/float64(counts["http://h/a"]), 0.4)
	assert.ErrorIs(t, tr(nil), vegeta.ErrNilTarget)

	_, err = NewWeightedTargeter("http://h", []Task{{Path: "/x"}}, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestParseProfileHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Sql-Profile-Slow-2-Uuid", "s2")
	h.Set("X-Sql-Profile-Nplus1-1-Uuid", "n1")
	h.Set("X-Sql-Profile-Nplus1-1-Stack", "a (x.go:1) | b (y.go:2)")
	h.Set("X-Sql-Profile-Slow-1-Uuid", "s1")
	h.Set("X-Sql-Profile-Query-Count", "12")
	h.Set("X-Other-Nplus1-3-Uuid", "ignored")
	h["x-sql-profile-slow-3-uuid"] = []string{"s3"}

	got := ParseProfileHeaders(h, "x-sql-profile")
	assert.Equal(t, []HeaderFinding{
		{Type: TypeNPlusOne, Rank: 1, UUID: "n1", Stack: "a (x.go:1) | b (y.go:2)"},
		{Type: TypeSlow, Rank: 1, UUID: "s1"},
		{Type: TypeSlow, Rank: 2, UUID: "s2"},
		{Type: TypeSlow, Rank: 3, UUID: "s3"},
	}, got)
	assert.Empty(t, ParseProfileHeaders(http.Header{"Content-Type": {"application/json"}}, "X-Sql-Profile"))
}

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	for i := 1; i <= 100; i++ {
		s.Record(TypeSlow, "q", time.Duration(i)*time.Millisecond, false)
	}
	s.Record(TypeSlow, "q", 0, true)
	s.Record("GET", "books", 5*time.Millisecond, false)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "GET", snap[0].Type)
	q := snap[1]
	assert.Equal(t, 101, q.Count)
	assert.Equal(t, 1, q.Failures)
	assert.InDelta(t, 50.5, q.AvgMs, 1e-9)
	assert.InDelta(t, 50, q.MedianMs, 1e-9)
	assert.InDelta(t, 99, q.P99Ms, 1e-9)
	assert.Equal(t, 1.0, q.MinMs)
	assert.Equal(t, 100.0, q.MaxMs)
	assert.Equal(t,
		"Custom Report - q | Avg Response Time: 50.50 ms | Median Response Time: 50.00 ms | 99% Response Time: 99.00 ms",
		ReportLine(q))
}

func TestLogReportSkipsFailedOnly(t *testing.T) {
	core, logs := zapobs.New(zapcore.InfoLevel)
	LogReport(zap.New(core), []EntrySummary{
		{Type: "GET", Name: "ok", Count: 2, AvgMs: 1},
		{Type: "GET", Name: "broken", Count: 3, Failures: 3},
	})
	require.Equal(t, 1, logs.Len())
	assert.True(t, strings.HasPrefix(logs.All()[0].Message, "Custom Report - ok"))
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func TestRunnerAggregatesProfileHeaders(t *testing.T) {
	var seq, lookups atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		n := seq.Add(1)
		w.Header().Set("X-Sql-Profile-Nplus1-1-Uuid", "n-"+strings.Repeat("x", int(n%3)))
		w.Header().Set("X-Sql-Profile-Slow-1-Uuid", "s")
		w.Header().Set("X-Sql-Profile-Slow-1-Stack", "store.(*Store).ListBooks (store/books.go:66)")
		_, _ = w.Write([]byte("[]"))
	})
	mux.HandleFunc("/api/broken/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/profiles/", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"label":   "N+1 Query",
			"finding": map[string]any{"sql": "SELECT 1", "count": 3, "stack": []string{"a", "b"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	core, logs := zapobs.New(zapcore.InfoLevel)
	store := &memoryStore{objects: map[string][]byte{}}
	r := &Runner{
		Scenario: Scenario{
			Name:           "unit",
			BaseURL:        srv.URL,
			Rate:           50,
			Duration:       400 * time.Millisecond,
			Workers:        4,
			ReportInterval: 100 * time.Millisecond,
			ResolveLimit:   2,
			Tasks: []Task{
				{Name: "books", Path: "/api/books/", Weight: 3},
				{Name: "broken", Path: "/api/broken/", Weight: 1},
			},
		},
		Logger: zap.New(core),
		Store:  store,
		Client: srv.Client(),
		Seed:   3,
	}
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(20), sum.Requests.Total)
	assert.Equal(t, 2, sum.Resolved)
	assert.Equal(t, int64(2), lookups.Load())
	assert.Equal(t, sum.NPlusOneSeen, sum.SlowSeen)
	assert.Positive(t, sum.NPlusOneSeen)

	byKey := map[string]EntrySummary{}
	for _, e := range sum.Entries {
		byKey[e.Type+"|"+e.Name] = e
	}
	assert.Equal(t, sum.SlowSeen, byKey[TypeSlow+"|s"].Count)
	assert.Equal(t, byKey["GET|broken"].Count, byKey["GET|broken"].Failures)
	assert.Zero(t, byKey["GET|books"].Failures)
	assert.Equal(t, 20, byKey["GET|books"].Count+byKey["GET|broken"].Count)

	assert.Positive(t, logs.FilterMessageSnippet("Slow Query Stack Trace 1").Len())
	assert.Positive(t, logs.FilterMessageSnippet("Custom Report - books").Len())

	require.NotEmpty(t, sum.ReportObject)
	assert.True(t, strings.HasPrefix(sum.ReportObject, "loadtest/unit-"))
	var uploaded Summary
	require.NoError(t, json.Unmarshal(store.objects[sum.ReportObject], &uploaded))
	assert.Equal(t, sum.Requests.Total, uploaded.Requests.Total)
}

func TestRunnerCapsFailedLookups(t *testing.T) {
	var lookups atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sql-Profile-Slow-1-Uuid", "s")
		_, _ = w.Write([]byte("[]"))
	})
	mux.HandleFunc("/api/profiles/", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	core, logs := zapobs.New(zapcore.WarnLevel)
	r := &Runner{
		Scenario: Scenario{
			BaseURL:      srv.URL,
			Rate:         50,
			Duration:     200 * time.Millisecond,
			ResolveLimit: 3,
			Tasks:        []Task{{Name: "books", Path: "/api/books/", Weight: 1}},
		},
		Logger: zap.New(core),
		Client: srv.Client(),
	}
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(10), sum.Requests.Total)
	assert.Equal(t, 10, sum.SlowSeen)
	assert.Zero(t, sum.Resolved)
	assert.Equal(t, int64(3), lookups.Load())
	assert.Equal(t, 3, logs.FilterMessage("resolve finding failed").Len())
}

func TestRunnerStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	r := &Runner{Scenario: Scenario{BaseURL: srv.URL, Rate: 20, Duration: time.Minute, Tasks: []Task{{Path: "/", Weight: 1}}}}
	sum, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Less(t, sum.Requests.Total, uint64(1200))
}

func TestRunnerRejectsInvalidScenario(t *testing.T) {
	r := &Runner{Scenario: Scenario{BaseURL: "localhost:8000"}}
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}
