package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yevheniidehtiar/locust-love-django/internal/config"
	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

// DefaultCap is how many reports a backend keeps before dropping the oldest.
const DefaultCap = 500

// ErrNotFound is returned by Get when no stored report carries the finding.
var ErrNotFound = errors.New("finding not found")

// ErrUnsupported is returned for operations a backend cannot perform.
var ErrUnsupported = errors.New("operation not supported by this backend")

// Backend persists profile reports so findings can be looked up by the UUID
// the middleware put in the response headers.
type Backend interface {
	Save(ctx context.Context, r profiling.Report) error
	Get(ctx context.Context, findingID string) (profiling.Report, profiling.Finding, error)
	List(ctx context.Context, limit int) ([]profiling.Report, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats summarizes the stored reports.
type Stats struct {
	Backend   string `json:"backend"`
	Reports   int    `json:"reports"`
	NPlusOne  int    `json:"nplus1_findings"`
	Slow      int    `json:"slow_findings"`
	OldestAge int64  `json:"oldest_age_seconds"`
}

// FromConfig picks the backend named by REPORT_BACKEND.
func FromConfig(cfg config.Config) (Backend, error) {
	switch cfg.ReportBackend {
	case "", "file":
		return NewFileBackend(cfg.ReportFile, DefaultCap), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("redis report backend needs REDIS_URL")
		}
		return NewRedisBackend(cfg.RedisURL, cfg.ReportRedisKey, DefaultCap, cfg.ReportTTL)
	case "kafka":
		if cfg.KafkaBrokers == "" {
			return nil, errors.New("kafka report backend needs KAFKA_BROKERS")
		}
		return NewKafkaBackend(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown report backend %q", cfg.ReportBackend)
	}
}

func find(items []profiling.Report, findingID string) (profiling.Report, profiling.Finding, error) {
	for i := len(items) - 1; i >= 0; i-- {
		if f, ok := items[i].Finding(findingID); ok {
			return items[i], f, nil
		}
	}
	return profiling.Report{}, profiling.Finding{}, ErrNotFound
}

// newest returns up to limit reports, newest first. items are oldest first.
func newest(items []profiling.Report, limit int) []profiling.Report {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]profiling.Report, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}

func summarize(name string, items []profiling.Report, now time.Time) Stats {
	stats := Stats{Backend: name, Reports: len(items)}
	var oldest time.Time
	for _, r := range items {
		for _, f := range r.Findings {
			if f.Kind == profiling.KindNPlusOne {
				stats.NPlusOne++
			} else {
				stats.Slow++
			}
		}
		if !r.CreatedAt.IsZero() && (oldest.IsZero() || r.CreatedAt.Before(oldest)) {
			oldest = r.CreatedAt
		}
	}
	if !oldest.IsZero() {
		stats.OldestAge = int64(now.Sub(oldest).Seconds())
	}
	return stats
}
