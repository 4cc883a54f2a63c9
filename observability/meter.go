package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/fwaudio/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Debug("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// File outcome statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the instruments recorded while transcribing audio.
type Metrics struct {
	filesTotal        metric.Int64Counter
	filesActive       metric.Int64UpDownCounter
	segmentsTotal     metric.Int64Counter
	recordsTotal      metric.Int64Counter
	audioDuration     metric.Float64Counter
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorTotal        metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	filesTotal, err := meter.Int64Counter("fwaudio.files.total",
		metric.WithDescription("Audio files processed, by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fwaudio.files.total counter: %w", err)
	}

	filesActive, err := meter.Int64UpDownCounter("fwaudio.files.active",
		metric.WithDescription("Audio files currently being transcribed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fwaudio.files.active gauge: %w", err)
	}

	segmentsTotal, err := meter.Int64Counter("fwaudio.segments.total",
		metric.WithDescription("Transcription segments produced"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fwaudio.segments.total counter: %w", err)
	}

	recordsTotal, err := meter.Int64Counter("fwaudio.records.total",
		metric.WithDescription("Pretraining records emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fwaudio.records.total counter: %w", err)
	}

	audioDuration, err := meter.Float64Counter("fwaudio.audio.duration",
		metric.WithDescription("Seconds of audio transcribed"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fwaudio.audio.duration counter: %w", err)
	}

	operationTotal, err := meter.Int64Counter("operation.total",
		metric.WithDescription("Total number of operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation.total counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("operation.duration",
		metric.WithDescription("Duration of operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		filesTotal:        filesTotal,
		filesActive:       filesActive,
		segmentsTotal:     segmentsTotal,
		recordsTotal:      recordsTotal,
		audioDuration:     audioDuration,
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		errorTotal:        errorTotal,
	}, nil
}

// RecordFileStart increments the active file count.
func (m *Metrics) RecordFileStart(ctx context.Context) {
	m.filesActive.Add(ctx, 1)
}

// RecordFileEnd decrements the active file count and counts the outcome.
func (m *Metrics) RecordFileEnd(ctx context.Context, status string) {
	m.filesActive.Add(ctx, -1)
	m.filesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordTranscript counts the segments, records and audio seconds of one file.
func (m *Metrics) RecordTranscript(ctx context.Context, segments, records int, audioSeconds float64) {
	m.segmentsTotal.Add(ctx, int64(segments))
	m.recordsTotal.Add(ctx, int64(records))
	if audioSeconds > 0 {
		m.audioDuration.Add(ctx, audioSeconds)
	}
}

// RecordOperation records an operation execution.
func (m *Metrics) RecordOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.operationTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
