package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

// FileBackend keeps reports as a JSON list on disk, oldest first.
type FileBackend struct {
	path string
	keep int
	mu   sync.Mutex
}

// NewFileBackend stores reports at path, keeping at most limit of them.
func NewFileBackend(path string, limit int) *FileBackend {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &FileBackend{path: path, keep: limit}
}

func (f *FileBackend) load() ([]profiling.Report, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []profiling.Report{}, nil
		}
		return nil, fmt.Errorf("read reports: %w", err)
	}
	if len(data) == 0 {
		return []profiling.Report{}, nil
	}
	var items []profiling.Report
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (f *FileBackend) save(items []profiling.Report) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileBackend) Save(ctx context.Context, r profiling.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := f.load()
	if err != nil {
		return err
	}
	items = append(items, r)
	if len(items) > f.keep {
		items = items[len(items)-f.keep:]
	}
	return f.save(items)
}

func (f *FileBackend) Get(ctx context.Context, findingID string) (profiling.Report, profiling.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return profiling.Report{}, profiling.Finding{}, err
	}
	items, err := f.load()
	if err != nil {
		return profiling.Report{}, profiling.Finding{}, err
	}
	return find(items, findingID)
}

func (f *FileBackend) List(ctx context.Context, limit int) ([]profiling.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := f.load()
	if err != nil {
		return nil, err
	}
	return newest(items, limit), nil
}

func (f *FileBackend) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.save([]profiling.Report{})
}

func (f *FileBackend) Stats(ctx context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	items, err := f.load()
	if err != nil {
		return Stats{}, err
	}
	return summarize("file", items, time.Now()), nil
}
