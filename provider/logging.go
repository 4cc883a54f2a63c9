package provider

import (
	"context"
	"time"

	"github.com/kbukum/fwaudio/logger"
)

// WithLogging returns a Middleware that logs each Execute call.
// Logs: provider name, duration, and success/error status.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &loggingRR[I, O]{inner: inner, log: log}
	}
}

type loggingRR[I, O any] struct {
	inner RequestResponse[I, O]
	log   *logger.Logger
}

func (l *loggingRR[I, O]) Name() string                         { return l.inner.Name() }
func (l *loggingRR[I, O]) IsAvailable(ctx context.Context) bool { return l.inner.IsAvailable(ctx) }

func (l *loggingRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	output, err := l.inner.Execute(ctx, input)

	fields := logger.MergeWithDuration(logger.Fields(logger.FieldProvider, l.inner.Name()), time.Since(start))
	if err != nil {
		l.log.Debug("provider execute failed", logger.MergeWithError(fields, err))
	} else {
		l.log.Debug("provider execute ok", fields)
	}

	return output, err
}
