package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FileOperation holds observability context for transcribing one audio file.
type FileOperation struct {
	ServiceName string
	RunID       string
	File        string
	StartTime   time.Time
	Metrics     *Metrics
}

// NewFileOperation creates a new file operation.
// If metrics is nil, metric recording is silently skipped.
func NewFileOperation(serviceName, runID, file string, metrics *Metrics) *FileOperation {
	return &FileOperation{
		ServiceName: serviceName,
		RunID:       runID,
		File:        file,
		StartTime:   time.Now(),
		Metrics:     metrics,
	}
}

type fileOperationKey struct{}

// WithFileOperation stores a FileOperation in the context.
func WithFileOperation(ctx context.Context, op *FileOperation) context.Context {
	return context.WithValue(ctx, fileOperationKey{}, op)
}

// FileOperationFromContext retrieves the FileOperation from context, or nil.
func FileOperationFromContext(ctx context.Context) *FileOperation {
	if op, ok := ctx.Value(fileOperationKey{}).(*FileOperation); ok {
		return op
	}
	return nil
}

// Start opens the file span and records the file start metric.
func (op *FileOperation) Start(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanReadFile)
	span.SetAttributes(
		attribute.String(AttrServiceName, op.ServiceName),
		attribute.String(AttrFile, op.File),
	)
	if op.RunID != "" {
		span.SetAttributes(attribute.String(AttrRunID, op.RunID))
	}

	if op.Metrics != nil {
		op.Metrics.RecordFileStart(ctx)
	}
	return WithFileOperation(ctx, op), span
}

// End closes the span and records the file outcome. A nil err means the file
// produced its records; segments and records are only counted in that case.
func (op *FileOperation) End(ctx context.Context, span trace.Span, segments, records int, audioSeconds float64, err error) {
	duration := time.Since(op.StartTime)
	status := StatusOK

	if err != nil {
		status = StatusFailed
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	} else {
		span.SetAttributes(attribute.Int(AttrSegments, segments))
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if op.Metrics == nil {
		return
	}
	op.Metrics.RecordFileEnd(ctx, status)
	if err != nil {
		op.Metrics.RecordError(ctx, "transcription", op.ServiceName)
		return
	}
	op.Metrics.RecordTranscript(ctx, segments, records, audioSeconds)
}

// Duration returns the elapsed time since the operation started.
func (op *FileOperation) Duration() time.Duration {
	return time.Since(op.StartTime)
}
