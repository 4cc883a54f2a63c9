// Package observability provides OpenTelemetry tracing and metrics for
// fwaudio runs.
//
// Export is off unless enabled; spans and instruments are still created
// against the global providers:
//
//	shutdown, err := observability.Setup(ctx, "fwaudio", version, "production", cfg.Telemetry)
//	defer shutdown(ctx)
//
// Per-file tracking:
//
//	op := observability.NewFileOperation("fwaudio", runID, path, metrics)
//	ctx, span := op.Start(ctx)
//	op.End(ctx, span, segments, records, audioSeconds, err)
//
// Backend health:
//
//	health := observability.NewServiceHealth("fwaudio", version)
//	health.AddComponent(observability.AvailabilityHealth("fasterwhisper", ok, nil))
package observability
