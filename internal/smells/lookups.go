package smells

import (
	"context"
	"fmt"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// DefaultSKUPrefix is the prefix the index demonstration looks up.
const DefaultSKUPrefix = "ABC"

// IndexRun is one timed lookup with the plan the database chose for it.
type IndexRun struct {
	Table           store.ProductTable `json:"table"`
	Results         []store.Product    `json:"results"`
	ExecutionTimeMs float64            `json:"execution_time_ms"`
	Plan            []string           `json:"query_plan"`
}

// IndexComparison runs the same prefix lookup on the unindexed and the
// indexed product table.
type IndexComparison struct {
	WithoutIndex IndexRun `json:"without_index"`
	WithIndex    IndexRun `json:"with_index"`
}

// CompareIndexes looks prefix up in both product tables.
func (s *Smells) CompareIndexes(ctx context.Context, prefix string) (IndexComparison, error) {
	var cmp IndexComparison
	var err error
	if cmp.WithoutIndex, err = s.indexRun(ctx, store.Products, prefix); err != nil {
		return cmp, err
	}
	cmp.WithIndex, err = s.indexRun(ctx, store.IndexedProducts, prefix)
	return cmp, err
}

func (s *Smells) indexRun(ctx context.Context, table store.ProductTable, prefix string) (IndexRun, error) {
	run := IndexRun{Table: table}
	took, err := timed(func() error {
		var err error
		run.Results, err = s.store.ProductsBySKUPrefix(ctx, table, prefix)
		return err
	})
	if err != nil {
		return run, fmt.Errorf("lookup %s: %w", table, err)
	}
	if run.Results == nil {
		run.Results = []store.Product{}
	}
	run.ExecutionTimeMs = millis(took)
	if run.Plan, err = s.store.ExplainSKUPrefix(ctx, table, prefix); err != nil {
		return run, fmt.Errorf("explain %s: %w", table, err)
	}
	return run, nil
}

// CachedRun is one execution of the year-window aggregate.
type CachedRun struct {
	Results       []store.AuthorStats `json:"results"`
	ExecutionTime float64             `json:"execution_time"`
	FromCache     bool                `json:"from_cache"`
}

// CachingComparison contrasts an uncached run with two cached ones.
type CachingComparison struct {
	WithoutCache   CachedRun `json:"without_cache"`
	WithCacheFirst CachedRun `json:"with_cache_first_call"`
	WithCacheNext  CachedRun `json:"with_cache_second_call"`
}

func yearWindowKey(w YearWindow) string {
	return fmt.Sprintf("year-window:%d:%d:%d", w.MinYear, w.MaxYear, w.MinAvgYear)
}

// YearWindowCached serves the aggregate from the cache when possible.
// Execution time is reported in seconds.
func (s *Smells) YearWindowCached(ctx context.Context, w YearWindow) (CachedRun, error) {
	var run CachedRun
	key := yearWindowKey(w)
	took, err := timed(func() error {
		hit, err := s.cache.Get(ctx, key, &run.Results)
		if err != nil {
			return err
		}
		if hit {
			run.FromCache = true
			return nil
		}
		if run.Results, err = s.YearWindowRaw(ctx, w); err != nil {
			return err
		}
		return s.cache.Set(ctx, key, run.Results, s.cacheTTL)
	})
	run.ExecutionTime = took.Seconds()
	return run, err
}

// CompareCaching runs the aggregate uncached, then twice through the cache.
// The entry is evicted first so the first cached call is always a miss.
func (s *Smells) CompareCaching(ctx context.Context, w YearWindow) (CachingComparison, error) {
	var cmp CachingComparison
	took, err := timed(func() error {
		var err error
		cmp.WithoutCache.Results, err = s.YearWindowRaw(ctx, w)
		return err
	})
	if err != nil {
		return cmp, err
	}
	cmp.WithoutCache.ExecutionTime = took.Seconds()

	if err := s.cache.Delete(ctx, yearWindowKey(w)); err != nil {
		return cmp, err
	}
	if cmp.WithCacheFirst, err = s.YearWindowCached(ctx, w); err != nil {
		return cmp, err
	}
	cmp.WithCacheNext, err = s.YearWindowCached(ctx, w)
	return cmp, err
}

// DocumentView is a document as returned by the deferred-loading
// demonstration. ContentBytes is only set when the content was loaded.
type DocumentView struct {
	store.Document
	ContentBytes *int `json:"content_bytes,omitempty"`
}

// DeferredLoading contrasts three column selections over documents.
type DeferredLoading struct {
	All          []DocumentView `json:"without_deferred_loading"`
	DeferContent []DocumentView `json:"with_defer"`
	OnlyTitles   []DocumentView `json:"with_only"`
}

// CompareDeferredLoading loads documents with every column, without the
// content blob, and with only id and title.
func (s *Smells) CompareDeferredLoading(ctx context.Context) (DeferredLoading, error) {
	var out DeferredLoading
	all, err := s.store.ListDocuments(ctx)
	if err != nil {
		return out, err
	}
	deferred, err := s.store.ListDocumentsDeferContent(ctx)
	if err != nil {
		return out, err
	}
	titles, err := s.store.ListDocumentTitles(ctx)
	if err != nil {
		return out, err
	}
	out.All = views(all, true)
	out.DeferContent = views(deferred, false)
	out.OnlyTitles = views(titles, false)
	return out, nil
}

func views(docs []store.Document, withSize bool) []DocumentView {
	out := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		v := DocumentView{Document: d}
		if withSize {
			n := len(d.Content)
			v.ContentBytes = &n
		}
		out = append(out, v)
	}
	return out
}
