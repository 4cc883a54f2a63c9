package observability

import (
	"context"
	stderrors "errors"
	"time"
)

// Config switches OTLP export on for a run. Spans and metrics are always
// recorded against the global providers; without export they go nowhere.
type Config struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`
	Insecure   bool          `mapstructure:"insecure"`
	SampleRate float64       `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `mapstructure:"interval"`
}

// ApplyDefaults fills the endpoint, sample rate and export interval.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// ShutdownFunc flushes and stops the providers started by Setup.
type ShutdownFunc func(ctx context.Context) error

// Setup starts OTLP tracing and metrics export when cfg.Enabled is set.
// The returned ShutdownFunc is never nil.
func Setup(ctx context.Context, serviceName, version, environment string, cfg Config) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	cfg.ApplyDefaults()

	tp, err := InitTracer(ctx, &TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    environment,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SampleRate:     cfg.SampleRate,
	})
	if err != nil {
		return noop, err
	}

	mp, err := InitMeter(ctx, &MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    environment,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		Interval:       cfg.Interval,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return noop, err
	}

	return func(ctx context.Context) error {
		return stderrors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
