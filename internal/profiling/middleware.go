package profiling

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yevheniidehtiar/locust-love-django/internal/settings"
	"github.com/yevheniidehtiar/locust-love-django/internal/sqltrace"
)

// DefaultPrefix starts every profile header name.
const DefaultPrefix = "X-Sql-Profile"

// StackSeparator joins frames in logs and stack headers.
const StackSeparator = " | "

const (
	maxStackHeaderBytes = 2048
	sinkTimeout         = 2 * time.Second
)

// SettingsSource supplies the live profiler knobs.
type SettingsSource interface {
	Current() settings.Settings
}

type staticSettings settings.Settings

func (s staticSettings) Current() settings.Settings { return settings.Settings(s) }

// Options configures a Middleware. Zero values pick defaults.
type Options struct {
	Prefix    string
	Settings  SettingsSource
	Sink      Sink
	Logger    *zap.Logger
	Metrics   *Metrics
	SkipPaths []string
}

// Middleware records the SQL a handler issues and reports on it.
type Middleware struct {
	prefix    string
	settings  SettingsSource
	sink      Sink
	logger    *zap.Logger
	metrics   *Metrics
	skipPaths []string
	newID     func() string
	now       func() time.Time
}

// New builds the middleware.
func New(opts Options) *Middleware {
	m := &Middleware{
		prefix:    strings.TrimRight(opts.Prefix, "-"),
		settings:  opts.Settings,
		sink:      opts.Sink,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		skipPaths: opts.SkipPaths,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	if m.prefix == "" {
		m.prefix = DefaultPrefix
	}
	if m.settings == nil {
		m.settings = staticSettings(settings.ApplyDefaults(settings.Settings{}))
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// HeaderName builds a finding header name, e.g. X-Sql-Profile-Nplus1-1-Uuid.
func (m *Middleware) HeaderName(kind Kind, rank int, suffix string) string {
	k := "Slow"
	if kind == KindNPlusOne {
		k = "Nplus1"
	}
	return http.CanonicalHeaderKey(m.prefix + "-" + k + "-" + strconv.Itoa(rank) + "-" + suffix)
}

// Prefix is the canonical header prefix in use.
func (m *Middleware) Prefix() string {
	return http.CanonicalHeaderKey(m.prefix)
}

func (m *Middleware) skipped(path string) bool {
	for _, p := range m.skipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler wraps next. Headers describe the queries issued before the
// status line; queries issued while streaming the body are only counted in
// the stored report.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		rec := sqltrace.NewRecorder()
		pw := &profileWriter{ResponseWriter: w}
		var report Report
		pw.beforeHeader = func(status int) {
			report = m.inject(w.Header(), r, status, rec.Queries())
		}
		next.ServeHTTP(pw, r.WithContext(sqltrace.WithRecorder(r.Context(), rec)))
		if !pw.wroteHeader {
			pw.WriteHeader(http.StatusOK)
		}
		report.LateQueries = rec.Len() - report.QueryCount
		m.store(r.Context(), report)
	})
}

func (m *Middleware) inject(h http.Header, r *http.Request, status int, queries []sqltrace.Query) Report {
	cfg := m.settings.Current()
	a := Analyze(queries, settings.IntValue(cfg.NPlusOneLimit), settings.IntValue(cfg.SlowLimit))
	stackHeaders := settings.BoolValue(cfg.StackHeaders)

	report := Report{
		ID:          m.newID(),
		Method:      r.Method,
		Path:        r.URL.Path,
		Status:      status,
		QueryCount:  a.Count,
		QueryTimeMs: ms(a.TotalTime),
		Findings:    make([]Finding, 0, len(a.NPlusOne)+len(a.Slow)),
		CreatedAt:   m.now().UTC(),
	}
	h.Set(m.prefix+"-Query-Count", strconv.Itoa(a.Count))
	h.Set(m.prefix+"-Query-Time-Ms", strconv.FormatFloat(report.QueryTimeMs, 'f', 3, 64))

	for i, g := range a.NPlusOne {
		report.Findings = append(report.Findings, Finding{
			ID:     m.newID(),
			Kind:   KindNPlusOne,
			Rank:   i + 1,
			SQL:    g.SQL,
			Count:  g.Count,
			TimeMs: ms(g.TotalTime),
			Stack:  g.Stack,
		})
	}
	for i, q := range a.Slow {
		report.Findings = append(report.Findings, Finding{
			ID:     m.newID(),
			Kind:   KindSlow,
			Rank:   i + 1,
			SQL:    q.SQL,
			Count:  1,
			TimeMs: ms(q.Duration),
			Stack:  q.Stack,
		})
	}
	emitted := make([]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		name := m.HeaderName(f.Kind, f.Rank, "Uuid")
		h.Set(name, f.ID)
		emitted = append(emitted, name)
		if stackHeaders && len(f.Stack) > 0 {
			name = m.HeaderName(f.Kind, f.Rank, "Stack")
			h.Set(name, stackHeader(f.Stack))
			emitted = append(emitted, name)
		}
		fields := []zap.Field{
			zap.Int("rank", f.Rank),
			zap.String("uuid", f.ID),
			zap.String("sql", f.SQL),
			zap.Float64("time_ms", f.TimeMs),
			zap.String("stacktrace", strings.Join(f.Stack, StackSeparator)),
		}
		if f.Kind == KindNPlusOne {
			fields = append(fields, zap.Int("count", f.Count))
		}
		m.logger.Info(f.Kind.Label(), fields...)
	}

	// finding headers vary per response, so a CORS layer that already
	// exposes the summary headers gets these appended
	if exposed := h.Get("Access-Control-Expose-Headers"); exposed != "" && len(emitted) > 0 {
		h.Set("Access-Control-Expose-Headers", exposed+", "+strings.Join(emitted, ", "))
	}

	if m.metrics != nil {
		m.metrics.QueriesPerRequest.WithLabelValues(r.Method).Observe(float64(a.Count))
		for _, q := range queries {
			m.metrics.QueryDuration.Observe(q.Duration.Seconds())
		}
		m.metrics.Findings.WithLabelValues(string(KindNPlusOne)).Add(float64(len(a.NPlusOne)))
		m.metrics.Findings.WithLabelValues(string(KindSlow)).Add(float64(len(a.Slow)))
	}
	return report
}

// store hands the report to the sink. Failures are logged only.
func (m *Middleware) store(parent context.Context, report Report) {
	if m.sink == nil || len(report.Findings) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), sinkTimeout)
	defer cancel()
	if err := m.sink.Save(ctx, report); err != nil {
		if m.metrics != nil {
			m.metrics.SinkErrors.Inc()
		}
		m.logger.Warn("store profile report failed", zap.String("report", report.ID), zap.Error(err))
	}
}

// stackHeader joins frames and cuts the value at a frame boundary so the
// header stays a reasonable size.
func stackHeader(frames []string) string {
	var b strings.Builder
	for i, f := range frames {
		next := len(f)
		if i > 0 {
			next += len(StackSeparator)
		}
		if b.Len()+next > maxStackHeaderBytes {
			break
		}
		if i > 0 {
			b.WriteString(StackSeparator)
		}
		b.WriteString(f)
	}
	return b.String()
}

// profileWriter runs beforeHeader exactly once, right before the status
// line goes out.
type profileWriter struct {
	http.ResponseWriter
	beforeHeader func(status int)
	wroteHeader  bool
}

func (p *profileWriter) WriteHeader(code int) {
	if p.wroteHeader {
		return
	}
	p.wroteHeader = true
	p.beforeHeader(code)
	p.ResponseWriter.WriteHeader(code)
}

func (p *profileWriter) Write(b []byte) (int, error) {
	if !p.wroteHeader {
		p.WriteHeader(http.StatusOK)
	}
	return p.ResponseWriter.Write(b)
}

func (p *profileWriter) Flush() {
	if !p.wroteHeader {
		p.WriteHeader(http.StatusOK)
	}
	if flusher, ok := p.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
