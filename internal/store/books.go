package store

import (
	"context"
	"fmt"
	"strings"
)

func scanAuthor(sc scanner) (Author, error) {
	var a Author
	err := sc.Scan(&a.ID, &a.Name)
	return a, err
}

const bookColumns = "id, title, author_id, publication_year"

func scanBook(sc scanner) (Book, error) {
	var b Book
	err := sc.Scan(&b.ID, &b.Title, &b.AuthorID, &b.PublicationYear)
	return b, err
}

// ListAuthors returns every author ordered by id.
func (s *Store) ListAuthors(ctx context.Context) ([]Author, error) {
	rows, err := s.query(ctx, "SELECT id, name FROM authors ORDER BY id")
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAuthor)
}

// GetAuthor loads one author.
func (s *Store) GetAuthor(ctx context.Context, id int64) (Author, error) {
	a, err := scanAuthor(s.queryRow(ctx, "SELECT id, name FROM authors WHERE id = $1", id))
	return a, notFound(err)
}

// CreateAuthor inserts an author.
func (s *Store) CreateAuthor(ctx context.Context, name string) (Author, error) {
	id, err := s.insertID(ctx, "INSERT INTO authors (name) VALUES ($1)", name)
	if err != nil {
		return Author{}, fmt.Errorf("create author: %w", err)
	}
	return Author{ID: id, Name: name}, nil
}

// UpdateAuthor renames an author.
func (s *Store) UpdateAuthor(ctx context.Context, a Author) error {
	res, err := s.exec(ctx, "UPDATE authors SET name = $1 WHERE id = $2", a.Name, a.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteAuthor removes an author and, through the cascade, their books.
func (s *Store) DeleteAuthor(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM authors WHERE id = $1", id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ListBooks returns every book without touching authors.
func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := s.query(ctx, "SELECT "+bookColumns+" FROM books ORDER BY id")
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBook)
}

// GetBook loads one book.
func (s *Store) GetBook(ctx context.Context, id int64) (Book, error) {
	b, err := scanBook(s.queryRow(ctx, "SELECT "+bookColumns+" FROM books WHERE id = $1", id))
	return b, notFound(err)
}

// CreateBook inserts a book.
func (s *Store) CreateBook(ctx context.Context, b Book) (Book, error) {
	id, err := s.insertID(ctx,
		"INSERT INTO books (title, author_id, publication_year) VALUES ($1, $2, $3)",
		b.Title, b.AuthorID, b.PublicationYear)
	if err != nil {
		return Book{}, fmt.Errorf("create book: %w", err)
	}
	b.ID = id
	return b, nil
}

// UpdateBook overwrites a book's columns.
func (s *Store) UpdateBook(ctx context.Context, b Book) error {
	res, err := s.exec(ctx,
		"UPDATE books SET title = $1, author_id = $2, publication_year = $3 WHERE id = $4",
		b.Title, b.AuthorID, b.PublicationYear, b.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteBook removes a book.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM books WHERE id = $1", id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// BooksByAuthor is the per-author relation lookup.
func (s *Store) BooksByAuthor(ctx context.Context, authorID int64) ([]Book, error) {
	rows, err := s.query(ctx, "SELECT "+bookColumns+" FROM books WHERE author_id = $1 ORDER BY id", authorID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBook)
}

// CountBooksByAuthor issues a COUNT for one author.
func (s *Store) CountBooksByAuthor(ctx context.Context, authorID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM books WHERE author_id = $1", authorID).Scan(&n)
	return n, err
}

// BooksByAuthors prefetches the books of many authors in one statement.
func (s *Store) BooksByAuthors(ctx context.Context, authorIDs []int64) (map[int64][]Book, error) {
	out := make(map[int64][]Book, len(authorIDs))
	if len(authorIDs) == 0 {
		return out, nil
	}
	q := "SELECT " + bookColumns + " FROM books WHERE author_id IN (" + placeholders(1, len(authorIDs)) + ") ORDER BY id"
	rows, err := s.query(ctx, q, int64Args(authorIDs)...)
	if err != nil {
		return nil, err
	}
	books, err := collect(rows, scanBook)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		out[b.AuthorID] = append(out[b.AuthorID], b)
	}
	return out, nil
}

// ListBooksWithAuthors joins books to authors in one statement.
func (s *Store) ListBooksWithAuthors(ctx context.Context) ([]BookWithAuthor, error) {
	rows, err := s.query(ctx, `SELECT b.id, b.title, b.author_id, b.publication_year, a.name
		FROM books b JOIN authors a ON a.id = b.author_id
		ORDER BY b.id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc scanner) (BookWithAuthor, error) {
		var b BookWithAuthor
		err := sc.Scan(&b.ID, &b.Title, &b.AuthorID, &b.PublicationYear, &b.AuthorName)
		return b, err
	})
}

// AuthorBookStats aggregates book counts and year ranges in the database.
// Authors without books are included with zero values.
func (s *Store) AuthorBookStats(ctx context.Context) ([]AuthorStats, error) {
	rows, err := s.query(ctx, `SELECT a.id, a.name, COUNT(b.id),
			COALESCE(MIN(b.publication_year), 0),
			COALESCE(MAX(b.publication_year), 0),
			COALESCE(AVG(b.publication_year), 0)
		FROM authors a LEFT JOIN books b ON b.author_id = a.id
		GROUP BY a.id, a.name
		ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAuthorStats)
}

func scanAuthorStats(sc scanner) (AuthorStats, error) {
	var st AuthorStats
	err := sc.Scan(&st.AuthorID, &st.Name, &st.BookCount, &st.EarliestYear, &st.LatestYear, &st.AverageYear)
	return st, err
}

// AuthorsInYearWindow runs the hand-written aggregate: authors with books
// published in [minYear, maxYear] whose average year in that window is at
// least minAvgYear.
func (s *Store) AuthorsInYearWindow(ctx context.Context, minYear, maxYear, minAvgYear int) ([]AuthorStats, error) {
	rows, err := s.query(ctx, `SELECT a.id, a.name, COUNT(b.id),
			MIN(b.publication_year), MAX(b.publication_year), AVG(b.publication_year)
		FROM authors a
		JOIN books b ON b.author_id = a.id
		WHERE b.publication_year BETWEEN $1 AND $2
		GROUP BY a.id, a.name
		HAVING AVG(b.publication_year) >= $3
		ORDER BY AVG(b.publication_year) DESC, a.id`,
		minYear, maxYear, minAvgYear)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAuthorStats)
}

// CountAuthors returns the number of authors.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM authors").Scan(&n)
	return n, err
}

// AuthorsMatching returns authors whose name contains q (case-insensitive).
func (s *Store) AuthorsMatching(ctx context.Context, q string) ([]Author, error) {
	rows, err := s.query(ctx, "SELECT id, name FROM authors WHERE LOWER(name) LIKE $1 ORDER BY id",
		"%"+strings.ToLower(q)+"%")
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAuthor)
}
