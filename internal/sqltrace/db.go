package sqltrace

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// MaxStackFrames bounds the caller frames kept per query.
const MaxStackFrames = 10

// Querier is the subset of *sql.DB / *sql.Tx the wrapper instruments.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB records every statement into the Recorder found in the call context.
type DB struct {
	q  Querier
	db *sql.DB
}

// Wrap instruments db.
func Wrap(db *sql.DB) *DB {
	return &DB{q: db, db: db}
}

// Raw exposes the underlying pool (migrations, health checks, Close).
func (d *DB) Raw() *sql.DB { return d.db }

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.q.QueryContext(ctx, query, args...)
	record(ctx, query, args, start, err)
	return rows, err
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := d.q.QueryRowContext(ctx, query, args...)
	record(ctx, query, args, start, row.Err())
	return row
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := d.q.ExecContext(ctx, query, args...)
	record(ctx, query, args, start, err)
	return res, err
}

// BeginTx starts a transaction whose statements are recorded too.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	if d.db == nil {
		return nil, fmt.Errorf("sqltrace: no pool to begin a transaction on")
	}
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{DB: DB{q: tx}, tx: tx}, nil
}

// Tx is a recorded transaction.
type Tx struct {
	DB
	tx *sql.Tx
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func record(ctx context.Context, query string, args []any, start time.Time, err error) {
	rec := RecorderFrom(ctx)
	if rec == nil {
		return
	}
	q := Query{
		SQL:      strings.TrimSpace(query),
		Args:     append([]any(nil), args...),
		Start:    start,
		Duration: time.Since(start),
		Stack:    callerStack(3),
		IsSelect: isSelect(query),
	}
	if err != nil {
		q.Err = err.Error()
	}
	rec.add(q)
}

func isSelect(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

var skippedFramePrefixes = []string{
	"runtime.",
	"database/sql.",
	"net/http.",
	"testing.",
}

func callerStack(skip int) []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		frame, more := frames.Next()
		if keepFrame(frame.Function) {
			out = append(out, fmt.Sprintf("%s (%s:%d)", shortFunc(frame.Function), trimPath(frame.File), frame.Line))
			if len(out) == MaxStackFrames {
				break
			}
		}
		if !more {
			break
		}
	}
	return out
}

// wrapperFrames are this package's own frames; callers in the package (its
// tests) stay visible.
var wrapperFrames = []string{
	"sqltrace.(*DB).",
	"sqltrace.(*Tx).",
	"sqltrace.record",
	"sqltrace.callerStack",
}

func keepFrame(fn string) bool {
	if fn == "" {
		return false
	}
	short := shortFunc(fn)
	for _, w := range wrapperFrames {
		if strings.HasPrefix(short, w) {
			return false
		}
	}
	for _, p := range skippedFramePrefixes {
		if strings.HasPrefix(fn, p) {
			return false
		}
	}
	return true
}

func shortFunc(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		return fn[i+1:]
	}
	return fn
}

// trimPath keeps the last two path elements, enough to locate the file.
func trimPath(file string) string {
	idx := strings.LastIndex(file, "/")
	if idx < 0 {
		return file
	}
	if prev := strings.LastIndex(file[:idx], "/"); prev >= 0 {
		return file[prev+1:]
	}
	return file
}
