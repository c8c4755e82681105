package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yevheniidehtiar/locust-love-django/internal/objectstore"
)

// RequestSummary is vegeta's view of the HTTP traffic.
type RequestSummary struct {
	Total       uint64         `json:"total"`
	Success     float64        `json:"success_ratio"`
	MeanMs      float64        `json:"mean_ms"`
	P50Ms       float64        `json:"p50_ms"`
	P99Ms       float64        `json:"p99_ms"`
	MaxMs       float64        `json:"max_ms"`
	StatusCodes map[string]int `json:"status_codes"`
	Errors      []string       `json:"errors,omitempty"`
}

// Summary is the final report of a run.
type Summary struct {
	Scenario     Scenario       `json:"scenario"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Requests     RequestSummary `json:"requests"`
	NPlusOneSeen int            `json:"nplus1_findings"`
	SlowSeen     int            `json:"slow_findings"`
	Resolved     int            `json:"resolved_findings"`
	Entries      []EntrySummary `json:"entries"`
	ReportObject string         `json:"report_object,omitempty"`
}

// Runner executes a scenario.
type Runner struct {
	Scenario Scenario
	Logger   *zap.Logger
	// Store receives the final JSON report; nil skips the upload.
	Store objectstore.Store
	// Client is used for finding resolution.
	Client *http.Client
	Seed   int64

	now func() time.Time
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run attacks until the scenario duration elapses or ctx is cancelled, then
// logs the final report and uploads it.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sc := withDefaults(r.Scenario)
	if err := sc.Validate(); err != nil {
		return Summary{}, err
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	seed := r.Seed
	if seed == 0 {
		seed = now().UnixNano()
	}
	targeter, err := NewWeightedTargeter(sc.BaseURL, sc.Tasks, rand.New(rand.NewSource(seed)))
	if err != nil {
		return Summary{}, err
	}
	names := make(map[string]string, len(sc.Tasks))
	for _, t := range sc.Tasks {
		names[t.Method+" "+sc.BaseURL+t.Path] = t.Name
	}

	log := r.logger()
	stats := NewStats()
	obs := &observer{
		scenario: sc,
		stats:    stats,
		logger:   log,
		names:    names,
		resolver: &Resolver{BaseURL: sc.BaseURL, Client: r.Client},
	}
	attacker := vegeta.NewAttacker(
		vegeta.Workers(uint64(sc.Workers)),
		vegeta.Timeout(sc.Timeout),
	)
	summary := Summary{Scenario: sc, StartedAt: now().UTC()}
	log.Info("starting load test",
		zap.String("scenario", sc.Name),
		zap.String("base_url", sc.BaseURL),
		zap.Int("rate", sc.Rate),
		zap.Duration("duration", sc.Duration))

	results := attacker.Attack(targeter, vegeta.Rate{Freq: sc.Rate, Per: time.Second}, sc.Duration, sc.Name)
	var metrics vegeta.Metrics
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		for res := range results {
			metrics.Add(res)
			obs.observe(gctx, res)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(sc.ReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				LogReport(log, stats.Snapshot())
			}
		}
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			attacker.Stop()
		case <-done:
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return summary, err
	}
	metrics.Close()

	summary.FinishedAt = now().UTC()
	summary.Requests = requestSummary(&metrics)
	summary.NPlusOneSeen = obs.nplus1
	summary.SlowSeen = obs.slow
	summary.Resolved = obs.resolved
	summary.Entries = stats.Snapshot()
	LogReport(log, summary.Entries)
	log.Info("load test finished",
		zap.Uint64("requests", summary.Requests.Total),
		zap.Float64("success_ratio", summary.Requests.Success),
		zap.Int("nplus1_findings", summary.NPlusOneSeen),
		zap.Int("slow_findings", summary.SlowSeen))

	if r.Store != nil {
		key := fmt.Sprintf("loadtest/%s-%s.json", sc.Name, summary.StartedAt.Format("20060102T150405Z"))
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return summary, err
		}
		if err := r.Store.Put(ctx, key, data, "application/json"); err != nil {
			return summary, fmt.Errorf("upload report: %w", err)
		}
		summary.ReportObject = key
	}
	return summary, nil
}

func requestSummary(m *vegeta.Metrics) RequestSummary {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return RequestSummary{
		Total:       m.Requests,
		Success:     m.Success,
		MeanMs:      ms(m.Latencies.Mean),
		P50Ms:       ms(m.Latencies.P50),
		P99Ms:       ms(m.Latencies.P99),
		MaxMs:       ms(m.Latencies.Max),
		StatusCodes: m.StatusCodes,
		Errors:      m.Errors,
	}
}

// observer turns attack results into statistics. It runs on the single
// consumer goroutine, so its counters need no locking.
type observer struct {
	scenario Scenario
	stats    *Stats
	logger   *zap.Logger
	names    map[string]string
	resolver *Resolver

	nplus1   int
	slow     int
	attempts int
	resolved int
}

func (o *observer) observe(ctx context.Context, res *vegeta.Result) {
	name := o.names[res.Method+" "+res.URL]
	if name == "" {
		name = strings.TrimPrefix(res.URL, o.scenario.BaseURL)
	}
	failed := res.Error != "" || res.Code == 0 || res.Code >= 400
	o.stats.Record(res.Method, name, res.Latency, failed)
	if res.Code != http.StatusOK {
		return
	}
	for _, f := range ParseProfileHeaders(res.Headers, o.scenario.HeaderPrefix) {
		if f.Stack != "" {
			o.logger.Info(fmt.Sprintf("%s Stack Trace %d: %s", f.Type, f.Rank, f.Stack), zap.String("task", name))
		}
		if f.UUID == "" {
			continue
		}
		if f.Type == TypeNPlusOne {
			o.nplus1++
		} else {
			o.slow++
		}
		o.stats.Record(f.Type, f.UUID, res.Latency, false)
		// failed lookups count too, so a broken endpoint cannot stall the
		// consumer for every finding
		if o.attempts < o.scenario.ResolveLimit {
			o.resolve(ctx, f.UUID, name)
		}
	}
}

func (o *observer) resolve(ctx context.Context, id, task string) {
	o.attempts++
	found, err := o.resolver.Resolve(ctx, id)
	if err != nil {
		o.logger.Warn("resolve finding failed", zap.String("uuid", id), zap.Error(err))
		return
	}
	o.resolved++
	o.logger.Info("resolved finding",
		zap.String("task", task),
		zap.String("type", found.Label),
		zap.String("uuid", id),
		zap.String("sql", found.Finding.SQL),
		zap.Int("count", found.Finding.Count),
		zap.String("stacktrace", strings.Join(found.Finding.Stack, " | ")))
}
