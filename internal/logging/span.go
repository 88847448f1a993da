package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one service operation and tags its log lines.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	failed error
}

// StartSpan derives a child span from ctx. A trace id is minted when ctx has none.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(slog.String("span_id", spanID), slog.String("span_name", name))
	if parent := SpanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail records err as the span outcome and returns it unchanged.
func (s *Span) Fail(err error) error {
	if s != nil {
		s.failed = err
	}
	return err
}

// End emits the span completion entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	if s.failed != nil {
		s.logger.Debug("span failed", slog.Duration("duration", time.Since(s.start)), "error", s.failed)
		return
	}
	s.logger.Debug("span completed", slog.Duration("duration", time.Since(s.start)))
}
