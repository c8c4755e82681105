package profiling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yevheniidehtiar/locust-love-django/internal/settings"
	"github.com/yevheniidehtiar/locust-love-django/internal/store"
	"github.com/yevheniidehtiar/locust-love-django/internal/store/storetest"
)

type memorySink struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (s *memorySink) Save(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}

func sequentialIDs(m *Middleware) {
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// nPlusOneHandler issues one list query and one count per author.
func nPlusOneHandler(st *store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authors, err := st.ListAuthors(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, a := range authors {
			if _, err := st.CountBooksByAuthor(r.Context(), a.ID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func seededStore(t *testing.T, authors int) *store.Store {
	t.Helper()
	st := storetest.New(t)
	for i := 0; i < authors; i++ {
		_, err := st.CreateAuthor(context.Background(), fmt.Sprintf("author %d", i))
		require.NoError(t, err)
	}
	return st
}

func TestMiddlewareSetsFindingHeaders(t *testing.T) {
	st := seededStore(t, 3)
	sink := &memorySink{}
	core, logs := observer.New(zapcore.InfoLevel)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := New(Options{Sink: sink, Logger: zap.New(core), Metrics: metrics})
	sequentialIDs(m)

	rec := httptest.NewRecorder()
	m.Handler(nPlusOneHandler(st)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/authors/", nil))
	res := rec.Result()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "4", res.Header.Get("X-Sql-Profile-Query-Count"))
	assert.NotEmpty(t, res.Header.Get("X-Sql-Profile-Query-Time-Ms"))
	// id-1 is the report itself
	assert.Equal(t, "id-2", res.Header.Get("X-Sql-Profile-Nplus1-1-Uuid"))
	assert.Empty(t, res.Header.Get("X-Sql-Profile-Nplus1-2-Uuid"))
	for i := 1; i <= 4; i++ {
		assert.NotEmpty(t, res.Header.Get(fmt.Sprintf("X-Sql-Profile-Slow-%d-Uuid", i)))
	}
	assert.Empty(t, res.Header.Get("X-Sql-Profile-Slow-5-Uuid"))
	assert.Empty(t, res.Header.Get("X-Sql-Profile-Nplus1-1-Stack"), "stack headers are off by default")

	require.Len(t, sink.reports, 1)
	report := sink.reports[0]
	assert.Equal(t, "id-1", report.ID)
	assert.Equal(t, "/api/authors/", report.Path)
	assert.Equal(t, 4, report.QueryCount)
	require.Len(t, report.Findings, 5)
	f, ok := report.Finding("id-2")
	require.True(t, ok)
	assert.Equal(t, KindNPlusOne, f.Kind)
	assert.Equal(t, 3, f.Count)
	assert.Contains(t, f.SQL, "SELECT COUNT(*) FROM books")
	assert.NotEmpty(t, f.Stack)

	nplus := logs.FilterMessage("N+1 Query").All()
	require.Len(t, nplus, 1)
	assert.Equal(t, "id-2", nplus[0].ContextMap()["uuid"])
	assert.EqualValues(t, 3, nplus[0].ContextMap()["count"])
	assert.Len(t, logs.FilterMessage("Slow Query").All(), 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Findings.WithLabelValues("nplus1")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Findings.WithLabelValues("slow")))
}

func TestMiddlewareHonoursSettings(t *testing.T) {
	st := seededStore(t, 4)
	stack := true
	m := New(Options{
		Prefix:   "X-Demo-",
		Settings: staticSettings(settings.ApplyDefaults(settings.Settings{SlowLimit: settings.Int(2), StackHeaders: &stack})),
	})

	rec := httptest.NewRecorder()
	m.Handler(nPlusOneHandler(st)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	h := rec.Result().Header

	assert.Equal(t, "X-Demo", m.Prefix())
	assert.NotEmpty(t, h.Get("X-Demo-Slow-2-Uuid"))
	assert.Empty(t, h.Get("X-Demo-Slow-3-Uuid"))
	stackValue := h.Get("X-Demo-Nplus1-1-Stack")
	require.NotEmpty(t, stackValue)
	assert.Contains(t, stackValue, "store.(*Store).CountBooksByAuthor")
	assert.Contains(t, stackValue, StackSeparator)
}

func TestMiddlewareZeroLimitsDisableFindings(t *testing.T) {
	st := seededStore(t, 3)
	sink := &memorySink{}
	m := New(Options{
		Sink:     sink,
		Settings: staticSettings(settings.ApplyDefaults(settings.Settings{NPlusOneLimit: settings.Int(0), SlowLimit: settings.Int(0)})),
	})

	rec := httptest.NewRecorder()
	m.Handler(nPlusOneHandler(st)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	h := rec.Result().Header
	assert.Equal(t, "4", h.Get("X-Sql-Profile-Query-Count"))
	assert.Empty(t, h.Get("X-Sql-Profile-Nplus1-1-Uuid"))
	assert.Empty(t, h.Get("X-Sql-Profile-Slow-1-Uuid"))
	assert.Empty(t, sink.reports)
}

func TestMiddlewareHandlerWithoutBody(t *testing.T) {
	st := seededStore(t, 1)
	m := New(Options{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = st.CountAuthors(r.Context())
	})
	rec := httptest.NewRecorder()
	m.Handler(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "1", rec.Result().Header.Get("X-Sql-Profile-Query-Count"))
	assert.NotEmpty(t, rec.Result().Header.Get("X-Sql-Profile-Slow-1-Uuid"))
}

func TestMiddlewareCountsLateQueries(t *testing.T) {
	st := seededStore(t, 1)
	sink := &memorySink{}
	m := New(Options{Sink: sink})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = st.CountAuthors(r.Context())
		w.WriteHeader(http.StatusAccepted)
		_, _ = st.ListAuthors(r.Context())
	})
	rec := httptest.NewRecorder()
	m.Handler(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Result().Header.Get("X-Sql-Profile-Query-Count"))
	require.Len(t, sink.reports, 1)
	assert.Equal(t, 1, sink.reports[0].LateQueries)
	assert.Equal(t, http.StatusAccepted, sink.reports[0].Status)
}

func TestMiddlewareSinkErrorDoesNotFailRequest(t *testing.T) {
	st := seededStore(t, 2)
	core, logs := observer.New(zapcore.WarnLevel)
	m := New(Options{Sink: &memorySink{err: errors.New("disk full")}, Logger: zap.New(core)})

	rec := httptest.NewRecorder()
	m.Handler(nPlusOneHandler(st)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("store profile report failed").Len())
}

func TestMiddlewareSkipsPaths(t *testing.T) {
	st := seededStore(t, 2)
	sink := &memorySink{}
	m := New(Options{Sink: sink, SkipPaths: []string{"/metrics", "/api/profiles"}})

	rec := httptest.NewRecorder()
	m.Handler(nPlusOneHandler(st)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profiles/stats", nil))
	for name := range rec.Result().Header {
		assert.False(t, strings.HasPrefix(name, "X-Sql-Profile"), name)
	}
	assert.Empty(t, sink.reports)
}

func TestStackHeaderCutsAtFrameBoundary(t *testing.T) {
	frames := make([]string, 100)
	for i := range frames {
		frames[i] = strings.Repeat("f", 60)
	}
	got := stackHeader(frames)
	assert.LessOrEqual(t, len(got), maxStackHeaderBytes)
	assert.Equal(t, 0, (len(got)+len(StackSeparator))%(60+len(StackSeparator)))
}
