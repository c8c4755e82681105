package reports

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

func TestHubFansOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(NewFileBackend(filepath.Join(t.TempDir(), "p.json"), 10))
	var _ profiling.Sink = h

	const subscribers = 3
	var wg sync.WaitGroup
	got := make([][]string, subscribers)
	cancels := make([]func(), subscribers)
	for i := 0; i < subscribers; i++ {
		ch, cancel := h.Subscribe()
		cancels[i] = cancel
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for r := range ch {
				got[i] = append(got[i], r.ID)
			}
		}(i)
	}
	assert.Equal(t, subscribers, h.Subscribers())

	ctx := context.Background()
	require.NoError(t, h.Save(ctx, sampleReport(1)))
	require.NoError(t, h.Save(ctx, sampleReport(2)))

	for _, cancel := range cancels {
		cancel()
		cancel()
	}
	wg.Wait()

	for i := range got {
		assert.Equal(t, []string{"report-1", "report-2"}, got[i])
	}
	assert.Zero(t, h.Subscribers())

	list, err := h.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewHub(NewFileBackend(filepath.Join(t.TempDir(), "p.json"), 200))
	ch, cancel := h.Subscribe()
	defer cancel()
	for i := 0; i < 100; i++ {
		require.NoError(t, h.Save(context.Background(), sampleReport(i)))
	}
	assert.Len(t, ch, cap(ch))
}
