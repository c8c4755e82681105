package smells

import (
	"context"
	"sort"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// AuthorNamesNPlusOne lists the author of every book, looking each author
// up separately.
func (s *Smells) AuthorNamesNPlusOne(ctx context.Context) ([]string, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(books))
	for _, b := range books {
		a, err := s.store.GetAuthor(ctx, b.AuthorID)
		if err != nil {
			return nil, err
		}
		names = append(names, a.Name)
	}
	return names, nil
}

// AuthorNamesOptimized does the same with one JOIN.
func (s *Smells) AuthorNamesOptimized(ctx context.Context) ([]string, error) {
	books, err := s.store.ListBooksWithAuthors(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(books))
	for _, b := range books {
		names = append(names, b.AuthorName)
	}
	return names, nil
}

// BookDetail is a book with its author and the author's other titles.
type BookDetail struct {
	Title            string   `json:"title"`
	Author           string   `json:"author"`
	PublicationYear  int      `json:"publication_year"`
	AuthorOtherBooks []string `json:"author_other_books"`
}

// ExpensiveBooks loads, for every book, its author and then all of that
// author's books: two extra statements per row.
func (s *Smells) ExpensiveBooks(ctx context.Context) ([]BookDetail, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BookDetail, 0, len(books))
	for _, b := range books {
		a, err := s.store.GetAuthor(ctx, b.AuthorID)
		if err != nil {
			return nil, err
		}
		authorBooks, err := s.store.BooksByAuthor(ctx, b.AuthorID)
		if err != nil {
			return nil, err
		}
		out = append(out, BookDetail{
			Title:            b.Title,
			Author:           a.Name,
			PublicationYear:  b.PublicationYear,
			AuthorOtherBooks: otherTitles(authorBooks, b.ID),
		})
	}
	return out, nil
}

// ExpensiveBooksOptimized joins authors in and prefetches every author's
// books in a second statement.
func (s *Smells) ExpensiveBooksOptimized(ctx context.Context) ([]BookDetail, error) {
	books, err := s.store.ListBooksWithAuthors(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int64
	seen := make(map[int64]bool)
	for _, b := range books {
		if !seen[b.AuthorID] {
			seen[b.AuthorID] = true
			ids = append(ids, b.AuthorID)
		}
	}
	byAuthor, err := s.store.BooksByAuthors(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]BookDetail, 0, len(books))
	for _, b := range books {
		out = append(out, BookDetail{
			Title:            b.Title,
			Author:           b.AuthorName,
			PublicationYear:  b.PublicationYear,
			AuthorOtherBooks: otherTitles(byAuthor[b.AuthorID], b.ID),
		})
	}
	return out, nil
}

func otherTitles(books []store.Book, except int64) []string {
	titles := []string{}
	for _, b := range books {
		if b.ID != except {
			titles = append(titles, b.Title)
		}
	}
	return titles
}

// summarize computes catalogue statistics in Go from already loaded books.
func summarize(a store.Author, books []store.Book) store.AuthorStats {
	st := store.AuthorStats{AuthorID: a.ID, Name: a.Name, BookCount: len(books)}
	if len(books) == 0 {
		return st
	}
	sum := 0
	st.EarliestYear, st.LatestYear = books[0].PublicationYear, books[0].PublicationYear
	for _, b := range books {
		sum += b.PublicationYear
		if b.PublicationYear < st.EarliestYear {
			st.EarliestYear = b.PublicationYear
		}
		if b.PublicationYear > st.LatestYear {
			st.LatestYear = b.PublicationYear
		}
	}
	st.AverageYear = float64(sum) / float64(len(books))
	return st
}

// AuthorStatsWithoutAnnotation fetches each author's books and aggregates
// them in Go.
func (s *Smells) AuthorStatsWithoutAnnotation(ctx context.Context) ([]store.AuthorStats, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.AuthorStats, 0, len(authors))
	for _, a := range authors {
		books, err := s.store.BooksByAuthor(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(a, books))
	}
	return out, nil
}

// AuthorStatsWithAnnotation lets GROUP BY do the aggregation.
func (s *Smells) AuthorStatsWithAnnotation(ctx context.Context) ([]store.AuthorStats, error) {
	out, err := s.store.AuthorBookStats(ctx)
	if out == nil && err == nil {
		out = []store.AuthorStats{}
	}
	return out, err
}

// YearWindow parameterises the author aggregate shared by the raw SQL and
// caching demonstrations.
type YearWindow struct {
	MinYear    int `json:"min_year"`
	MaxYear    int `json:"max_year"`
	MinAvgYear int `json:"min_avg_year"`
}

// DefaultYearWindow matches the values the endpoints use.
var DefaultYearWindow = YearWindow{MinYear: 1950, MaxYear: 2020, MinAvgYear: 1980}

// YearWindowORM filters and aggregates in Go after one query per author.
func (s *Smells) YearWindowORM(ctx context.Context, w YearWindow) ([]store.AuthorStats, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	out := []store.AuthorStats{}
	for _, a := range authors {
		books, err := s.store.BooksByAuthor(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		var inWindow []store.Book
		for _, b := range books {
			if b.PublicationYear >= w.MinYear && b.PublicationYear <= w.MaxYear {
				inWindow = append(inWindow, b)
			}
		}
		if len(inWindow) == 0 {
			continue
		}
		st := summarize(a, inWindow)
		if st.AverageYear >= float64(w.MinAvgYear) {
			out = append(out, st)
		}
	}
	// authors arrive ordered by id, so a stable sort keeps id as tie-break
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageYear > out[j].AverageYear })
	return out, nil
}

// YearWindowRaw runs the whole aggregate as one hand-written statement.
func (s *Smells) YearWindowRaw(ctx context.Context, w YearWindow) ([]store.AuthorStats, error) {
	out, err := s.store.AuthorsInYearWindow(ctx, w.MinYear, w.MaxYear, w.MinAvgYear)
	if out == nil && err == nil {
		out = []store.AuthorStats{}
	}
	return out, err
}

// AuthorWithBooks is the nested author representation.
type AuthorWithBooks struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Books     []store.Book `json:"books"`
	BookCount int          `json:"book_count"`
}

// AuthorsWithBooksUnoptimized issues two statements per author: one for
// the books and one to count them.
func (s *Smells) AuthorsWithBooksUnoptimized(ctx context.Context) ([]AuthorWithBooks, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AuthorWithBooks, 0, len(authors))
	for _, a := range authors {
		books, err := s.store.BooksByAuthor(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		n, err := s.store.CountBooksByAuthor(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if books == nil {
			books = []store.Book{}
		}
		out = append(out, AuthorWithBooks{ID: a.ID, Name: a.Name, Books: books, BookCount: n})
	}
	return out, nil
}

// AuthorsWithBooksOptimized counts in the author query and prefetches all
// books in one more.
func (s *Smells) AuthorsWithBooksOptimized(ctx context.Context) ([]AuthorWithBooks, error) {
	stats, err := s.store.AuthorBookStats(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(stats))
	for i, st := range stats {
		ids[i] = st.AuthorID
	}
	byAuthor, err := s.store.BooksByAuthors(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]AuthorWithBooks, 0, len(stats))
	for _, st := range stats {
		books := byAuthor[st.AuthorID]
		if books == nil {
			books = []store.Book{}
		}
		out = append(out, AuthorWithBooks{ID: st.AuthorID, Name: st.Name, Books: books, BookCount: st.BookCount})
	}
	return out, nil
}
