package main

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/kbukum/fwaudio"
	"github.com/kbukum/fwaudio/errors"
	"github.com/kbukum/fwaudio/logger"
	"github.com/kbukum/fwaudio/observability"
	"github.com/kbukum/fwaudio/version"
)

const checkTimeout = 30 * time.Second

// runCheck probes the configured backend without loading a model and prints
// the result as JSON.
func runCheck(ctx context.Context, cfg *appConfig, info version.Info, stdout io.Writer) int {
	log := logger.GetGlobalLogger()

	backend, err := fwaudio.NewRegistry().Create(cfg.Reader.Backend, cfg.Reader.ProviderConfig())
	if err != nil {
		log.Error("unknown backend", logger.ErrorFields("check", err))
		return errors.ExitCode(err)
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	health := observability.NewServiceHealth(cfg.Name, info.Short())
	health.AddComponent(observability.AvailabilityHealth(backend.Name(), backend.IsAvailable(ctx), map[string]string{
		"model_size":   cfg.Reader.ModelSize,
		"device":       cfg.Reader.Device,
		"compute_type": cfg.Reader.ComputeType,
	}))

	out, err := json.MarshalIndent(health, "", "  ")
	if err != nil {
		log.Error("encode health", logger.ErrorFields("check", err))
		return errors.ExitFailure
	}
	_, _ = stdout.Write(append(out, '\n'))
	if !health.IsUp() {
		return errors.ExitFailure
	}
	return errors.ExitOK
}
