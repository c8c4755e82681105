package smells

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevheniidehtiar/locust-love-django/internal/cache"
	"github.com/yevheniidehtiar/locust-love-django/internal/seed"
	"github.com/yevheniidehtiar/locust-love-django/internal/sqltrace"
	"github.com/yevheniidehtiar/locust-love-django/internal/store"
	"github.com/yevheniidehtiar/locust-love-django/internal/store/storetest"
)

var today = store.NewDate(2025, time.March, 31)

func newSmells(t *testing.T) *Smells {
	t.Helper()
	st := storetest.New(t)
	_, err := seed.Generate(context.Background(), st, seed.Options{
		Counts: seed.Counts{
			Authors:             6,
			BooksPerAuthor:      4,
			Products:            40,
			Departments:         2,
			EmployeesPerDept:    5,
			ProjectsPerDept:     3,
			TasksPerProject:     6,
			DocumentsPerProject: 2,
			DocumentBytes:       256,
		},
		Today: today,
	})
	require.NoError(t, err)
	s := New(st, cache.NewMemoryCache(), time.Minute)
	s.now = func() time.Time { return today.Time.Add(12 * time.Hour) }
	return s
}

// counted runs fn with a fresh recorder and returns how many statements it issued.
func counted[T any](t *testing.T, fn func(context.Context) (T, error)) (T, int) {
	t.Helper()
	rec := sqltrace.NewRecorder()
	v, err := fn(sqltrace.WithRecorder(context.Background(), rec))
	require.NoError(t, err)
	return v, rec.Len()
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestAuthorNamesPair(t *testing.T) {
	s := newSmells(t)
	bad, badN := counted(t, s.AuthorNamesNPlusOne)
	good, goodN := counted(t, s.AuthorNamesOptimized)

	assert.Len(t, bad, 24)
	assert.Empty(t, cmp.Diff(bad, good))
	assert.Equal(t, 1+24, badN)
	assert.Equal(t, 1, goodN)
}

func TestExpensiveBooksPair(t *testing.T) {
	s := newSmells(t)
	bad, badN := counted(t, s.ExpensiveBooks)
	good, goodN := counted(t, s.ExpensiveBooksOptimized)

	assert.Empty(t, cmp.Diff(bad, good))
	require.NotEmpty(t, bad)
	assert.Len(t, bad[0].AuthorOtherBooks, 3)
	assert.Equal(t, 1+2*24, badN)
	assert.Equal(t, 2, goodN)
}

func TestAnnotationPair(t *testing.T) {
	s := newSmells(t)
	bad, badN := counted(t, s.AuthorStatsWithoutAnnotation)
	good, goodN := counted(t, s.AuthorStatsWithAnnotation)

	assert.Empty(t, cmp.Diff(bad, good, approx))
	assert.Greater(t, badN, goodN)
	for _, st := range good {
		assert.Equal(t, 4, st.BookCount)
		assert.LessOrEqual(t, st.EarliestYear, st.LatestYear)
	}
}

func TestYearWindowPair(t *testing.T) {
	s := newSmells(t)
	ctx := context.Background()
	w := YearWindow{MinYear: 1900, MaxYear: 2023, MinAvgYear: 1960}
	orm, err := s.YearWindowORM(ctx, w)
	require.NoError(t, err)
	raw, err := s.YearWindowRaw(ctx, w)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(orm, raw, approx))
	for i := 1; i < len(raw); i++ {
		assert.GreaterOrEqual(t, raw[i-1].AverageYear, raw[i].AverageYear)
	}

	none, err := s.YearWindowRaw(ctx, YearWindow{MinYear: 3000, MaxYear: 3001})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCompareIndexes(t *testing.T) {
	s := newSmells(t)
	cmpRes, err := s.CompareIndexes(context.Background(), DefaultSKUPrefix)
	require.NoError(t, err)
	assert.Len(t, cmpRes.WithoutIndex.Results, 8)
	assert.Empty(t, cmp.Diff(cmpRes.WithoutIndex.Results, cmpRes.WithIndex.Results, cmpopts.IgnoreFields(store.Product{}, "ID")))
	require.NotEmpty(t, cmpRes.WithIndex.Plan)
	assert.Contains(t, cmpRes.WithIndex.Plan[0], "indexed_products_sku_idx")
	assert.NotContains(t, cmpRes.WithoutIndex.Plan[0], "indexed_products_sku_idx")
}

func TestCompareCaching(t *testing.T) {
	s := newSmells(t)
	res, n := counted(t, func(ctx context.Context) (CachingComparison, error) {
		return s.CompareCaching(ctx, DefaultYearWindow)
	})

	assert.False(t, res.WithCacheFirst.FromCache)
	assert.True(t, res.WithCacheNext.FromCache)
	assert.Empty(t, cmp.Diff(res.WithoutCache.Results, res.WithCacheNext.Results, approx))
	assert.Equal(t, 2, n, "the cached call issues no statement")

	// a later request still sees a miss first
	again, err := s.CompareCaching(context.Background(), DefaultYearWindow)
	require.NoError(t, err)
	assert.False(t, again.WithCacheFirst.FromCache)
}

func TestCompareDeferredLoading(t *testing.T) {
	s := newSmells(t)
	res, err := s.CompareDeferredLoading(context.Background())
	require.NoError(t, err)
	require.Len(t, res.All, 12)
	require.NotNil(t, res.All[0].ContentBytes)
	assert.Equal(t, 256, *res.All[0].ContentBytes)
	assert.Nil(t, res.DeferContent[0].ContentBytes)
	assert.Nil(t, res.DeferContent[0].Content)
	assert.Equal(t, res.All[0].Description, res.DeferContent[0].Description)
	assert.Empty(t, res.OnlyTitles[0].Description)
	assert.Equal(t, res.All[0].Title, res.OnlyTitles[0].Title)
}

func TestAuthorsWithBooksPair(t *testing.T) {
	s := newSmells(t)
	bad, badN := counted(t, s.AuthorsWithBooksUnoptimized)
	good, goodN := counted(t, s.AuthorsWithBooksOptimized)

	assert.Empty(t, cmp.Diff(bad, good))
	assert.Equal(t, 1+2*6, badN)
	assert.Equal(t, 2, goodN)
}

func TestProjectReportPair(t *testing.T) {
	s := newSmells(t)
	code, err := s.DefaultProjectCode(context.Background())
	require.NoError(t, err)

	bad, badN := counted(t, func(ctx context.Context) (ProjectReport, error) {
		return s.ProjectReportNaive(ctx, code)
	})
	good, goodN := counted(t, func(ctx context.Context) (ProjectReport, error) {
		return s.ProjectReportOptimized(ctx, code)
	})

	assert.Empty(t, cmp.Diff(bad, good, approx))
	assert.Equal(t, 5, goodN)
	assert.Greater(t, badN, 3*goodN)

	assert.Equal(t, code, bad.ProjectCode)
	assert.Len(t, bad.Team, 4)
	assert.Equal(t, noManager, bad.Team[0].Manager)
	assert.Len(t, bad.Documents, 2)
	assert.Equal(t, "256 bytes", bad.Documents[0].Size)
	total := 0
	for _, tasks := range bad.Tasks {
		total += len(tasks)
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, 180, bad.Timeline.DaysElapsed)
}

func TestProjectReportMissing(t *testing.T) {
	s := newSmells(t)
	_, err := s.ProjectReportNaive(context.Background(), "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ProjectReportOptimized(context.Background(), "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeDepartment(t *testing.T) {
	s := newSmells(t)
	ctx := context.Background()
	code, err := s.DefaultDepartmentCode(ctx)
	require.NoError(t, err)

	res, n := counted(t, func(ctx context.Context) (DepartmentAnalysis, error) {
		return s.AnalyzeDepartment(ctx, code, store.Date{}, store.Date{})
	})
	assert.Equal(t, today.AddDays(-DefaultAnalysisDays), res.StartDate)
	assert.Equal(t, today, res.EndDate)
	assert.Equal(t, 3, res.Department.TotalProjects)
	assert.Equal(t, 2, res.Department.ActiveProjects, "one project ended ten days ago")
	assert.Len(t, res.Projects, 3)
	assert.Len(t, res.Employees, 5)
	assert.Equal(t, 30, res.OverallMetrics.TotalTasks)
	assert.Equal(t, 5, res.OverallMetrics.TotalEmployees)
	assert.InDelta(t, 6.0, res.OverallMetrics.AvgTasksPerEmployee, 1e-9)
	assert.Len(t, res.Projects[0].TeamPerformance, 4)
	assert.Len(t, res.Projects[0].BudgetUtilization.EmployeeCosts, 4)
	assert.Greater(t, n, 40)

	_, err = s.AnalyzeDepartment(ctx, "NOPE", store.Date{}, store.Date{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
