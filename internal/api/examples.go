package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/yevheniidehtiar/locust-love-django/internal/smells"
	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

type explained[T any] struct {
	Results     T      `json:"results"`
	Explanation string `json:"explanation"`
}

type indexResult struct {
	smells.IndexRun
	Explanation string `json:"explanation"`
}

type cachedResult struct {
	smells.CachedRun
	Explanation string `json:"explanation"`
}

func (h *Handler) nPlusOne(w http.ResponseWriter, r *http.Request) {
	names, err := h.Smells.AuthorNamesNPlusOne(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"author_names": names})
}

func (h *Handler) optimized(w http.ResponseWriter, r *http.Request) {
	names, err := h.Smells.AuthorNamesOptimized(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"author_names": names})
}

func (h *Handler) expensive(w http.ResponseWriter, r *http.Request) {
	books, err := h.Smells.ExpensiveBooks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) annotation(w http.ResponseWriter, r *http.Request) {
	without, err := h.Smells.AuthorStatsWithoutAnnotation(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	with, err := h.Smells.AuthorStatsWithAnnotation(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"without_annotation": without,
		"with_annotation":    with,
		"explanation":        "The 'with_annotation' approach is more efficient because it performs calculations in the database rather than in application code. This reduces the number of queries and the amount of data transferred.",
	})
}

func (h *Handler) databaseIndex(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("sku")
	if prefix == "" {
		prefix = smells.DefaultSKUPrefix
	}
	if err := store.ValidSKUPrefix(prefix); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cmp, err := h.Smells.CompareIndexes(r.Context(), prefix)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"without_index": indexResult{
			IndexRun:    cmp.WithoutIndex,
			Explanation: "Without an index, the database performs a full table scan to find matching products.",
		},
		"with_index": indexResult{
			IndexRun:    cmp.WithIndex,
			Explanation: "With an index, the database can quickly locate matching products without scanning the entire table.",
		},
		"general_explanation": "Database indexes improve query performance by creating a data structure that allows the database to find rows quickly without scanning the entire table. This is particularly important for large tables and frequently queried fields.",
	})
}

// yearWindow reads min_year, max_year and min_avg_year, falling back to the
// defaults for missing or malformed values.
func yearWindow(r *http.Request) smells.YearWindow {
	w := smells.DefaultYearWindow
	q := r.URL.Query()
	read := func(key string, dst *int) {
		if n, err := strconv.Atoi(q.Get(key)); err == nil {
			*dst = n
		}
	}
	read("min_year", &w.MinYear)
	read("max_year", &w.MaxYear)
	read("min_avg_year", &w.MinAvgYear)
	return w
}

func (h *Handler) rawSQL(w http.ResponseWriter, r *http.Request) {
	win := yearWindow(r)
	orm, err := h.Smells.YearWindowORM(r.Context(), win)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := h.Smells.YearWindowRaw(r.Context(), win)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orm_query": explained[[]store.AuthorStats]{
			Results:     orm,
			Explanation: "This approach uses row accessors, which are convenient but require multiple database queries and application-side processing for complex operations.",
		},
		"raw_sql_query": explained[[]store.AuthorStats]{
			Results:     raw,
			Explanation: "This approach uses raw SQL, which can execute the entire complex query in a single database operation, often resulting in better performance.",
		},
		"general_explanation": "Raw SQL is typically more efficient for complex queries involving multiple joins, aggregations, or specific database features. However, it sacrifices some of the safety and convenience of the accessors, so it should be used judiciously.",
	})
}

func (h *Handler) queryCaching(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.Smells.CompareCaching(r.Context(), yearWindow(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"without_cache": cachedResult{
			CachedRun:   cmp.WithoutCache,
			Explanation: "Without caching, the expensive query is executed each time, which can be slow.",
		},
		"with_cache_first_call": cachedResult{
			CachedRun:   cmp.WithCacheFirst,
			Explanation: "On the first call with caching, the query is still executed, but the results are stored in the cache for future use.",
		},
		"with_cache_second_call": cachedResult{
			CachedRun:   cmp.WithCacheNext,
			Explanation: "On subsequent calls, the results are retrieved from the cache, avoiding the expensive database query.",
		},
		"general_explanation": "Caching query results can significantly improve performance by avoiding repeated database hits. This is particularly useful for expensive queries that are called frequently but whose results don't change often.",
	})
}

func (h *Handler) deferredLoading(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.Smells.CompareDeferredLoading(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"without_deferred_loading": explained[[]smells.DocumentView]{
			Results:     cmp.All,
			Explanation: "Without deferred loading, all fields are loaded from the database, which can be inefficient if you don't need all fields.",
		},
		"with_defer": explained[[]smells.DocumentView]{
			Results:     cmp.DeferContent,
			Explanation: "With the content column deferred, the large field is not loaded from the database, which can improve performance when it is not needed.",
		},
		"with_only": explained[[]smells.DocumentView]{
			Results:     cmp.OnlyTitles,
			Explanation: "Selecting only the needed columns loads just those fields, which can be more efficient when you only need a few fields from a wide table.",
		},
		"general_explanation": "Deferred loading allows you to optimize database queries by loading only the fields you need. This can significantly reduce the amount of data transferred from the database and improve performance, especially for tables with many fields or large text/binary fields.",
	})
}

func (h *Handler) serializerOptimization(w http.ResponseWriter, r *http.Request) {
	unoptimized, err := h.Smells.AuthorsWithBooksUnoptimized(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	optimized, err := h.Smells.AuthorsWithBooksOptimized(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unoptimized_approach": explained[[]smells.AuthorWithBooks]{
			Results:     unoptimized,
			Explanation: "The unoptimized approach causes N+1 queries: 1 query to get all authors, then N queries (one per author) to get their books, plus N more queries to count books.",
		},
		"optimized_approach": explained[[]smells.AuthorWithBooks]{
			Results:     optimized,
			Explanation: "The optimized approach loads all books in a single prefetch query and computes the book count in the same query that fetches authors.",
		},
		"optimization_techniques": map[string]string{
			"prefetch":          "Load related rows for every parent in one IN query, avoiding N+1 queries.",
			"join":              "Use a JOIN for to-one relationships to fetch related rows in the same query.",
			"annotations":       "Calculate values in the database rather than in application code.",
			"read_only_fields":  "Skip work for fields that are only ever read.",
			"serializer_design": "Design response shapes to minimize nested relationships and avoid redundant data.",
		},
		"general_explanation": "Optimizing serializers is crucial for API performance, especially with nested resources. The key is to minimize database queries by prefetching, joining and aggregating in the database.",
	})
}

// complexNested builds the project report for ?code= (default: the first
// project). ?optimized=true switches to the batched variant.
func (h *Handler) complexNested(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		var err error
		if code, err = h.Smells.DefaultProjectCode(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	optimized, _ := strconv.ParseBool(r.URL.Query().Get("optimized"))
	build := h.Smells.ProjectReportNaive
	if optimized {
		build = h.Smells.ProjectReportOptimized
	}
	start := time.Now()
	report, err := build(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_report":    report,
		"optimized":         optimized,
		"execution_time_ms": float64(time.Since(start).Microseconds()) / 1000,
		"explanation":       "The report is assembled by nested helpers that each issue their own queries for the department, budget, timeline, team, tasks, subtasks and documents, producing a deep N+1 pattern. The optimized variant loads each section with a single query.",
	})
}

// departmentAnalysis analyses ?code= (default: the first department) over
// ?start_date= and ?end_date= (YYYY-MM-DD, default the last 90 days).
func (h *Handler) departmentAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("start_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date"})
		return
	}
	to, err := parseDate(q.Get("end_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date"})
		return
	}
	code := q.Get("code")
	if code == "" {
		if code, err = h.Smells.DefaultDepartmentCode(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	start := time.Now()
	analysis, err := h.Smells.AnalyzeDepartment(r.Context(), code, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analysis":          analysis,
		"execution_time_ms": float64(time.Since(start).Microseconds()) / 1000,
		"explanation":       "Every project, team member and employee is analysed by helpers that reload the rows they need, so the query count grows with projects, team size and employees.",
	})
}

func parseDate(s string) (store.Date, error) {
	if s == "" {
		return store.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return store.Date{}, err
	}
	return store.DateOf(t), nil
}
