package reports

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevheniidehtiar/locust-love-django/internal/config"
	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

func sampleReport(n int) profiling.Report {
	return profiling.Report{
		ID:          fmt.Sprintf("report-%d", n),
		Method:      "GET",
		Path:        "/api/books/",
		Status:      200,
		QueryCount:  11,
		QueryTimeMs: 4.5,
		Findings: []profiling.Finding{
			{ID: fmt.Sprintf("n-%d", n), Kind: profiling.KindNPlusOne, Rank: 1, SQL: "SELECT name FROM authors WHERE id = $1", Count: 10, TimeMs: 3, Stack: []string{"store.(*Store).GetAuthor (store/books.go:40)"}},
			{ID: fmt.Sprintf("s-%d", n), Kind: profiling.KindSlow, Rank: 1, SQL: "SELECT id FROM books", Count: 1, TimeMs: 1.5},
		},
		CreatedAt: time.Date(2025, 3, 1, 12, 0, n, 0, time.UTC),
	}
}

// exerciseBackend runs the behaviour every clearable backend shares.
func exerciseBackend(t *testing.T, b Backend, keep int) {
	t.Helper()
	ctx := context.Background()

	list, err := b.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	for i := 1; i <= keep+2; i++ {
		require.NoError(t, b.Save(ctx, sampleReport(i)))
	}

	list, err = b.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, fmt.Sprintf("report-%d", keep+2), list[0].ID)
	assert.Equal(t, fmt.Sprintf("report-%d", keep+1), list[1].ID)

	all, err := b.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, keep, "oldest reports are dropped")

	rep, f, err := b.Get(ctx, "n-3")
	require.NoError(t, err)
	assert.Equal(t, "report-3", rep.ID)
	if diff := cmp.Diff(sampleReport(3).Findings[0], f); diff != "" {
		t.Fatalf("finding mismatch (-want +got):\n%s", diff)
	}

	_, _, err = b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, keep, stats.Reports)
	assert.Equal(t, keep, stats.NPlusOne)
	assert.Equal(t, keep, stats.Slow)
	assert.Positive(t, stats.OldestAge)

	require.NoError(t, b.Clear(ctx))
	list, err = b.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.json")
	exerciseBackend(t, NewFileBackend(path, 3), 3)
}

func TestFileBackendHonoursContext(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "p.json"), 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Save(ctx, sampleReport(1)), context.Canceled)
}

func TestFileBackendSurfacesReadErrors(t *testing.T) {
	// a directory where the report file should be cannot be read
	dir := t.TempDir()
	b := NewFileBackend(dir, 3)
	ctx := context.Background()

	_, err := b.List(ctx, 5)
	assert.Error(t, err)
	_, err = b.Stats(ctx)
	assert.Error(t, err)
	_, _, err = b.Get(ctx, "n-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileBackendMissingFileIsEmpty(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "absent.json"), 3)
	items, err := b.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackendClient(client, "test:profiles", 3, time.Minute)
	t.Cleanup(func() { _ = b.Close() })

	exerciseBackend(t, b, 3)
	assert.Empty(t, mr.Keys())
}

func TestRedisBackendFindingsExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	b := NewRedisBackendClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", 0, time.Minute)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, sampleReport(1)))
	assert.True(t, mr.Exists("smells:profiles:finding:n-1"))
	_, _, err := b.Get(ctx, "s-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, _, err = b.Get(ctx, "s-1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := b.List(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, list, 1, "the recent list outlives finding keys")
}

func TestKafkaBackendWithoutBrokers(t *testing.T) {
	b := NewKafkaBackend("", "")
	ctx := context.Background()
	assert.Error(t, b.Save(ctx, sampleReport(1)))
	_, err := b.List(ctx, 5)
	assert.Error(t, err)
	_, err = b.Stats(ctx)
	assert.Error(t, err)
	assert.ErrorIs(t, b.Clear(ctx), ErrUnsupported)
	assert.NoError(t, b.Close())
}

func TestKafkaBackendUnreachableBroker(t *testing.T) {
	b := NewKafkaBackend("127.0.0.1:1", "")
	ctx := context.Background()

	_, err := b.List(ctx, 5)
	assert.Error(t, err)
	_, _, err = b.Get(ctx, "n-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	_, err = b.Stats(ctx)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	b, err := FromConfig(config.Config{ReportFile: filepath.Join(dir, "p.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	mr := miniredis.RunT(t)
	b, err = FromConfig(config.Config{ReportBackend: "redis", RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisBackend{}, b)

	b, err = FromConfig(config.Config{ReportBackend: "kafka", KafkaBrokers: "localhost:9092"})
	require.NoError(t, err)
	assert.IsType(t, &KafkaBackend{}, b)

	_, err = FromConfig(config.Config{ReportBackend: "redis"})
	assert.Error(t, err)
	_, err = FromConfig(config.Config{ReportBackend: "kafka"})
	assert.Error(t, err)
	_, err = FromConfig(config.Config{ReportBackend: "mongo"})
	assert.Error(t, err)
}

type failingBackend struct{ Backend }

func (failingBackend) Save(context.Context, profiling.Report) error {
	return errors.New("unavailable")
}

func TestHubDoesNotPublishFailedSaves(t *testing.T) {
	h := NewHub(failingBackend{})
	ch, cancel := h.Subscribe()
	defer cancel()
	assert.Error(t, h.Save(context.Background(), sampleReport(1)))
	select {
	case r := <-ch:
		t.Fatalf("unexpected report %s", r.ID)
	default:
	}
}
