package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
	"github.com/yevheniidehtiar/locust-love-django/internal/store/storetest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	st := storetest.New(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestAuthorBookCRUD(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	a, err := st.CreateAuthor(ctx, "Ursula K. Le Guin")
	require.NoError(t, err)
	require.NotZero(t, a.ID)

	b, err := st.CreateBook(ctx, store.Book{Title: "The Dispossessed", AuthorID: a.ID, PublicationYear: 1974})
	require.NoError(t, err)

	got, err := st.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	b.PublicationYear = 1975
	require.NoError(t, st.UpdateBook(ctx, b))
	got, err = st.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1975, got.PublicationYear)

	n, err := st.CountBooksByAuthor(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a.Name = "U. K. Le Guin"
	require.NoError(t, st.UpdateAuthor(ctx, a))
	joined, err := st.ListBooksWithAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, "U. K. Le Guin", joined[0].AuthorName)

	require.NoError(t, st.DeleteAuthor(ctx, a.ID))
	_, err = st.GetBook(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "books cascade with their author")
	assert.ErrorIs(t, st.DeleteAuthor(ctx, a.ID), store.ErrNotFound)
}

func TestBooksByAuthorsGroupsPrefetch(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	a1, _ := st.CreateAuthor(ctx, "A")
	a2, _ := st.CreateAuthor(ctx, "B")
	a3, _ := st.CreateAuthor(ctx, "C")
	for i, id := range []int64{a1.ID, a1.ID, a2.ID} {
		_, err := st.CreateBook(ctx, store.Book{Title: "t", AuthorID: id, PublicationYear: 1990 + i})
		require.NoError(t, err)
	}
	got, err := st.BooksByAuthors(ctx, []int64{a1.ID, a2.ID, a3.ID})
	require.NoError(t, err)
	assert.Len(t, got[a1.ID], 2)
	assert.Len(t, got[a2.ID], 1)
	assert.Empty(t, got[a3.ID])
}

func TestAuthorsInYearWindow(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	old, _ := st.CreateAuthor(ctx, "Old")
	recent, _ := st.CreateAuthor(ctx, "Recent")
	for _, y := range []int{1955, 1960} {
		_, err := st.CreateBook(ctx, store.Book{Title: "o", AuthorID: old.ID, PublicationYear: y})
		require.NoError(t, err)
	}
	for _, y := range []int{1990, 2000, 2030} {
		_, err := st.CreateBook(ctx, store.Book{Title: "r", AuthorID: recent.ID, PublicationYear: y})
		require.NoError(t, err)
	}
	stats, err := st.AuthorsInYearWindow(ctx, 1950, 2020, 1980)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Recent", stats[0].Name)
	assert.Equal(t, 2, stats[0].BookCount, "2030 falls outside the window")
	assert.InDelta(t, 1995.0, stats[0].AverageYear, 0.001)
}

func TestSKUPrefixLookupUsesIndex(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	for _, table := range []store.ProductTable{store.Products, store.IndexedProducts} {
		for _, sku := range []string{"ABC-1", "ABC-2", "ABD-1", "XYZ-9"} {
			_, err := st.CreateProduct(ctx, table, store.Product{Name: sku, SKU: sku, Price: 9.99})
			require.NoError(t, err)
		}
	}
	plain, err := st.ProductsBySKUPrefix(ctx, store.Products, "ABC")
	require.NoError(t, err)
	indexed, err := st.ProductsBySKUPrefix(ctx, store.IndexedProducts, "ABC")
	require.NoError(t, err)
	require.Len(t, plain, 2)
	require.Len(t, indexed, 2)
	assert.Equal(t, plain[1].SKU, indexed[1].SKU)

	plan, err := st.ExplainSKUPrefix(ctx, store.IndexedProducts, "ABC")
	require.NoError(t, err)
	require.NotEmpty(t, plan)
	assert.Contains(t, plan[0], "indexed_products_sku_idx")

	_, err = st.ProductsBySKUPrefix(ctx, store.Products, "")
	assert.ErrorIs(t, err, store.ErrInvalidPrefix)
	_, err = st.ProductsBySKUPrefix(ctx, store.Products, "é")
	assert.ErrorIs(t, err, store.ErrInvalidPrefix)
	_, err = st.ExplainSKUPrefix(ctx, store.IndexedProducts, "AB C")
	assert.ErrorIs(t, err, store.ErrInvalidPrefix)
	_, err = st.ProductsBySKUPrefix(ctx, store.ProductTable("bogus"), "A")
	assert.Error(t, err)
}

func TestValidSKUPrefix(t *testing.T) {
	assert.NoError(t, store.ValidSKUPrefix("ABC"))
	assert.NoError(t, store.ValidSKUPrefix("A~"))
	for _, bad := range []string{"", "é", "AB\x00", "A B", strings.Repeat("A", 51)} {
		assert.ErrorIs(t, store.ValidSKUPrefix(bad), store.ErrInvalidPrefix, "%q", bad)
	}
}

func TestDatesRoundTrip(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	dept, err := st.CreateDepartment(ctx, store.Department{Name: "Research", Code: "RND"})
	require.NoError(t, err)
	boss, err := st.CreateEmployee(ctx, store.Employee{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		DepartmentID: dept.ID, HireDate: store.NewDate(2020, time.March, 1), Salary: 100000,
	})
	require.NoError(t, err)
	emp, err := st.CreateEmployee(ctx, store.Employee{
		FirstName: "Charles", LastName: "Babbage", Email: "cb@example.com",
		DepartmentID: dept.ID, ManagerID: &boss.ID, HireDate: store.NewDate(2021, time.June, 15), Salary: 90000,
	})
	require.NoError(t, err)

	got, err := st.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ManagerID)
	assert.Equal(t, boss.ID, *got.ManagerID)
	assert.Equal(t, "2021-06-15", got.HireDate.String())

	gotBoss, err := st.GetEmployee(ctx, boss.ID)
	require.NoError(t, err)
	assert.Nil(t, gotBoss.ManagerID)

	proj, err := st.CreateProject(ctx, store.Project{
		Name: "Engine", Code: "ENG-1", StartDate: store.NewDate(2024, time.January, 1), Budget: 5000, DepartmentID: dept.ID,
	})
	require.NoError(t, err)
	created := time.Date(2024, time.February, 10, 13, 30, 0, 0, time.UTC)
	_, err = st.CreateTask(ctx, store.Task{
		Title: "t", ProjectID: proj.ID, AssignedToID: emp.ID, CreatedByID: boss.ID,
		CreatedDate: store.NewTimestamp(created),
	})
	require.NoError(t, err)

	in, err := st.TasksByProjectCreatedBetween(ctx, proj.ID, store.NewDate(2024, time.February, 1), store.NewDate(2024, time.February, 10))
	require.NoError(t, err)
	require.Len(t, in, 1, "the end day is inclusive")
	assert.Equal(t, store.StatusTodo, in[0].Status)
	assert.True(t, created.Equal(in[0].CreatedDate.Time))
	assert.False(t, in[0].DueDate.Valid)

	out, err := st.TasksByProjectCreatedBetween(ctx, proj.ID, store.NewDate(2024, time.February, 11), store.NewDate(2024, time.March, 1))
	require.NoError(t, err)
	assert.Empty(t, out)

	p, err := st.GetProjectByCode(ctx, "ENG-1")
	require.NoError(t, err)
	assert.False(t, p.EndDate.Valid)
}

func TestTaskOverdue(t *testing.T) {
	today := store.NewDate(2024, time.May, 10)
	task := store.Task{Status: store.StatusTodo, DueDate: store.NewDate(2024, time.May, 9)}
	assert.True(t, task.IsOverdue(today))
	task.Status = store.StatusDone
	assert.False(t, task.IsOverdue(today))
	assert.False(t, store.Task{Status: store.StatusTodo}.IsOverdue(today))
}

func TestParseDialect(t *testing.T) {
	d, err := store.ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, store.Postgres, d)
	_, err = store.ParseDialect("oracle")
	assert.Error(t, err)
}
