// Package tracing records per-request stage timings. A root span is started
// per analysis and each stage (fetch, extract, pipeline) becomes a child.
// The tree is carried in the context and written to slog as one record.
package tracing

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

type spanKey struct{}

type Span struct {
	name     string
	traceID  string
	start    time.Time
	duration time.Duration
	ended    bool

	mu       sync.Mutex
	attrs    []slog.Attr
	children []*Span
}

// StartSpan begins a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanKey{}, span), span
}

// StartChildSpan begins a span under the one in ctx. Without a parent the
// new span is a root with an empty trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	child := &Span{name: name, traceID: parent.traceID, start: time.Now()}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, child), child
}

func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// End fixes the span's duration. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.start)
		s.ended = true
	}
}

// SetAttr records an attribute. An ended span is immutable.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attrs = append(s.attrs, slog.Any(key, value))
}

func (s *Span) Name() string    { return s.name }
func (s *Span) TraceID() string { return s.traceID }

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// ChildDurations sums the durations of the direct children by name.
func (s *Span) ChildDurations() map[string]time.Duration {
	children := s.Children()
	out := make(map[string]time.Duration, len(children))
	for _, c := range children {
		out[c.name] += c.Duration()
	}
	return out
}

// LogValue renders the span and its descendants as nested groups.
func (s *Span) LogValue() slog.Value {
	s.mu.Lock()
	attrs := make([]slog.Attr, 0, len(s.attrs)+len(s.children)+2)
	attrs = append(attrs, slog.String("name", s.name), slog.Int64("duration_us", s.duration.Microseconds()))
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	for i, c := range children {
		attrs = append(attrs, slog.Any(strconv.Itoa(i), c))
	}
	return slog.GroupValue(attrs...)
}

// Log writes the span tree to logger at debug level, or to slog's default
// logger when logger is nil.
func (s *Span) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("trace", "trace_id", s.traceID, "span", s)
}
