// Command fwaudio transcribes audio files with faster-whisper and writes the
// text as JSON-lines pretraining records.
//
//	fwaudio -i 'talks/*.wav' -I more.txt -m small -c int8 -o corpus.jsonl
//
// Options come from flags, FWAUDIO_* environment variables, .env and
// config.yml, in that order of precedence. Logs go to stderr.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"

	"github.com/kbukum/fwaudio"
	"github.com/kbukum/fwaudio/errors"
	"github.com/kbukum/fwaudio/logger"
	"github.com/kbukum/fwaudio/observability"
	"github.com/kbukum/fwaudio/pipeline"
	"github.com/kbukum/fwaudio/pretrain"
	"github.com/kbukum/fwaudio/transcription/fasterwhisper"
	"github.com/kbukum/fwaudio/transcription/whisper"
	"github.com/kbukum/fwaudio/version"
)

const (
	shutdownTimeout = 10 * time.Second
	writeBuffer     = 64
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// runStats summarizes one run.
type runStats struct {
	records int
	failed  []string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return errors.ExitOK
		}
		return errors.ExitUsage
	}
	info := version.Get()
	if v, _ := fs.GetBool("version"); v {
		fmt.Fprintln(stdout, info)
		return errors.ExitOK
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", serviceName, err)
		return exitCode(err)
	}

	runID := uuid.NewString()
	log := logger.NewWithWriter(&cfg.Logging, cfg.Name, stderr).
		WithFields(logger.Fields(logger.FieldRunID, runID))
	logger.SetGlobalLogger(log)
	logger.RegisterDefaults(fwaudio.Name, fasterwhisper.ProviderName, whisper.ProviderName)

	if check, _ := fs.GetBool("check"); check {
		return runCheck(ctx, cfg, info, stdout)
	}

	shutdown, err := observability.Setup(ctx, cfg.Name, info.Short(), cfg.Environment, cfg.Observability)
	if err != nil {
		log.Error("observability setup failed", logger.ErrorFields("setup", err))
		return errors.ExitFailure
	}
	opts := []fwaudio.Option{
		fwaudio.WithLogger(logger.Get(fwaudio.Name)),
		fwaudio.WithRunID(runID),
	}
	if cfg.Observability.Enabled {
		metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
		if err != nil {
			log.Warn("metrics disabled", logger.ErrorFields("metrics", err))
		} else {
			opts = append(opts, fwaudio.WithMetrics(metrics))
		}
	}

	start := time.Now()
	reader := fwaudio.NewReader(cfg.Reader, opts...)
	stats, runErr := transcribe(ctx, reader, cfg.Output, stdout)

	var merr *multierror.Error
	if runErr != nil {
		merr = multierror.Append(merr, runErr)
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := reader.Close(closeCtx); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("close reader: %w", err))
	}
	if err := shutdown(closeCtx); err != nil {
		log.Warn("observability shutdown failed", logger.ErrorFields("shutdown", err))
	}

	fields := logger.MergeWithDuration(logger.Fields(
		"files", len(reader.Files()),
		"failed", len(stats.failed),
		"records", stats.records,
	), time.Since(start))
	if err := merr.ErrorOrNil(); err != nil {
		log.Error("run failed", logger.MergeWithError(fields, err))
		if code := exitCode(runErr); code != errors.ExitOK {
			return code
		}
		return errors.ExitFailure
	}
	if len(stats.failed) > 0 {
		log.Warn("run finished with failed files", logger.MergeWithDuration(logger.Fields(
			"files", len(reader.Files()),
			"failed_files", stats.failed,
			"records", stats.records,
		), time.Since(start)))
		return errors.ExitOK
	}
	log.Info("run finished", fields)
	return errors.ExitOK
}

// transcribe initializes reader and streams its records into the output.
// Failed files are counted and skipped.
func transcribe(ctx context.Context, reader *fwaudio.Reader, output string, stdout io.Writer) (runStats, error) {
	var stats runStats
	if err := reader.Initialize(ctx); err != nil {
		return stats, err
	}

	writer, err := openOutput(output, stdout)
	if err != nil {
		return stats, err
	}

	// Transcription runs ahead of the writer by up to writeBuffer results.
	results := pipeline.Tap(pipeline.Buffer(fwaudio.Results(reader), writeBuffer),
		func(_ context.Context, r fwaudio.Result) error {
			if r.Err != nil {
				stats.failed = append(stats.failed, r.Input)
			}
			return nil
		})
	records := pipeline.Map(pipeline.Filter(results, fwaudio.Result.OK),
		func(_ context.Context, r fwaudio.Result) (pretrain.Data, error) { return *r.Data, nil })

	runErr := pipeline.Drain(records, writer.Send).Run(ctx)
	stats.records = writer.Written()
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return stats, runErr
}

func openOutput(path string, stdout io.Writer) (*pretrain.Writer, error) {
	if path == "" || path == pretrain.Stdout {
		// Hide any Close method: stdout stays open.
		return pretrain.NewWriter(struct{ io.Writer }{stdout}), nil
	}
	return pretrain.Create(path)
}

// exitCode maps err to a process exit code; a cancelled run exits 130.
func exitCode(err error) int {
	if stderrors.Is(err, context.Canceled) {
		return 130
	}
	return errors.ExitCode(err)
}
