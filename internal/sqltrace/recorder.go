package sqltrace

import (
	"context"
	"sync"
	"time"
)

// Query is one executed statement as seen by the tracing wrapper.
type Query struct {
	SQL      string        `json:"sql"`
	Args     []any         `json:"args,omitempty"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Stack    []string      `json:"stack,omitempty"`
	IsSelect bool          `json:"is_select"`
	Err      string        `json:"error,omitempty"`
}

// Recorder accumulates the queries issued while serving one request.
type Recorder struct {
	mu      sync.Mutex
	queries []Query
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(q Query) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
}

// Queries returns a copy of the recorded queries in execution order.
func (r *Recorder) Queries() []Query {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Query(nil), r.queries...)
}

// Len reports how many queries have been recorded so far.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// Reset drops all recorded queries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.queries = nil
	r.mu.Unlock()
}

type recorderKey struct{}

// WithRecorder attaches rec to ctx.
func WithRecorder(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFrom returns the recorder attached to ctx, or nil.
func RecorderFrom(ctx context.Context) *Recorder {
	rec, _ := ctx.Value(recorderKey{}).(*Recorder)
	return rec
}
