package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/yevheniidehtiar/locust-love-django/internal/sqltrace"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Dialect selects SQL flavour differences between supported databases.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts the DB_DRIVER spellings.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// Store owns all SQL issued by the demo; every statement goes through the
// tracing wrapper so the profiler sees it.
type Store struct {
	db      *sqltrace.DB
	dialect Dialect
}

// New wraps an existing pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: sqltrace.Wrap(db), dialect: dialect}
}

// NewPostgres creates a store for a lib/pq pool.
func NewPostgres(db *sql.DB) *Store {
	return New(db, Postgres)
}

// NewSQLite creates a store for a modernc.org/sqlite pool.
func NewSQLite(db *sql.DB) *Store {
	return New(db, SQLite)
}

// Open connects using dsn for postgres or path for sqlite.
func Open(dialect Dialect, dsn string) (*Store, error) {
	switch dialect {
	case Postgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewPostgres(db), nil
	case SQLite:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return NewSQLite(db), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func sqliteDSN(path string) string {
	return "file:" + path +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

// DB exposes the traced pool.
func (s *Store) DB() *sqltrace.DB { return s.db }

// Dialect reports the SQL flavour in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Raw().Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.Raw().PingContext(ctx) }

// Migrate creates tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.ddl() {
		if _, err := s.db.Raw().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Truncate removes every row, children first.
func (s *Store) Truncate(ctx context.Context) error {
	for _, table := range tablesInDeleteOrder {
		if _, err := s.db.Raw().ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// rebind rewrites $N placeholders into SQLite's ?N form.
func (s *Store) rebind(query string) string {
	if s.dialect != SQLite || !strings.Contains(query, "$") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

// insertID runs an INSERT ... RETURNING id statement.
func (s *Store) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	buf := make([]byte, 0, n*4)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, fmt.Sprintf("$%d", start+i)...)
	}
	return string(buf)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
