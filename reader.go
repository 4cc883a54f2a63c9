package fwaudio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/kbukum/fwaudio/errors"
	"github.com/kbukum/fwaudio/locate"
	"github.com/kbukum/fwaudio/logger"
	"github.com/kbukum/fwaudio/observability"
	"github.com/kbukum/fwaudio/pipeline"
	"github.com/kbukum/fwaudio/pretrain"
	"github.com/kbukum/fwaudio/provider"
	"github.com/kbukum/fwaudio/transcription"
)

// Name is the reader name.
const Name = "from-fwaudio-" + pretrain.DomainSuffix

// Description describes the reader.
const Description = "Transcribes text from audio files (.wav, .mp3) to use for pretraining."

// Reader transcribes a fixed list of audio files, one file per Read.
// It is not safe for concurrent use.
type Reader struct {
	cfg      Config
	log      *logger.Logger
	locator  *locate.Locator
	registry *provider.Registry[transcription.Provider]
	metrics  *observability.Metrics
	runID    string

	backend transcription.Provider
	exec    provider.RequestResponse[transcription.TranscriptionRequest, *transcription.TranscriptionResponse]

	files       []string
	cursor      int
	current     string
	initialized bool
	closeOnce   sync.Once
	closeErr    error
}

// Option configures a Reader.
type Option func(*Reader)

// WithProvider uses p instead of creating the configured backend.
func WithProvider(p transcription.Provider) Option {
	return func(r *Reader) { r.backend = p }
}

// WithRegistry creates the backend from reg instead of NewRegistry().
func WithRegistry(reg *provider.Registry[transcription.Provider]) Option {
	return func(r *Reader) { r.registry = reg }
}

// WithLocator resolves inputs with l instead of the OS filesystem.
func WithLocator(l *locate.Locator) Option {
	return func(r *Reader) { r.locator = l }
}

// WithLogger sets the reader logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Reader) { r.log = l }
}

// WithMetrics records file and provider metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// WithRunID tags spans with the run id.
func WithRunID(id string) Option {
	return func(r *Reader) { r.runID = id }
}

// NewReader returns a reader for cfg. Nothing is resolved or loaded until
// Initialize.
func NewReader(cfg Config, opts ...Option) *Reader {
	r := &Reader{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get(Name)
	}
	if r.locator == nil {
		r.locator = locate.New(nil)
	}
	if r.registry == nil {
		r.registry = NewRegistry()
	}
	return r
}

// Name returns the reader name.
func (r *Reader) Name() string { return Name }

// Description returns a one-line description of the reader.
func (r *Reader) Description() string { return Description }

// Config returns the reader options, with defaults once initialized.
func (r *Reader) Config() Config { return r.cfg }

// Initialize applies defaults, resolves the input files and loads the
// backend. It fails with NO_INPUTS when no file is found. Calling it again
// is a no-op.
func (r *Reader) Initialize(ctx context.Context) error {
	if r.initialized {
		return nil
	}

	computeTypeSet := r.cfg.ComputeType != ""
	r.cfg.ApplyDefaults()
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	if !computeTypeSet {
		r.log.Debug("compute_type not set, using default", logger.Fields(
			"compute_type", r.cfg.ComputeType,
			"cli_default", DefaultCLIComputeType,
		))
	}
	if r.cfg.Device == "cpu" && r.cfg.ComputeType == "float16" {
		r.log.Warn("float16 is not supported on cpu by most faster-whisper builds", logger.Fields(
			"device", r.cfg.Device,
			"compute_type", r.cfg.ComputeType,
			"suggested", DefaultCLIComputeType,
		))
	}

	files, err := r.locator.Locate(r.cfg.Input, r.cfg.InputList, true)
	if err != nil {
		return err
	}

	if r.backend == nil {
		p, err := r.registry.Create(r.cfg.Backend, r.cfg.ProviderConfig())
		if err != nil {
			return err
		}
		r.backend = p
	}
	if err := provider.InitIfNeeded(ctx, r.backend); err != nil {
		return fmt.Errorf("initialize %s backend: %w", r.backend.Name(), err)
	}

	middlewares := []provider.Middleware[transcription.TranscriptionRequest, *transcription.TranscriptionResponse]{
		provider.WithLogging[transcription.TranscriptionRequest, *transcription.TranscriptionResponse](r.log),
		provider.WithTracing[transcription.TranscriptionRequest, *transcription.TranscriptionResponse](Name),
	}
	if r.metrics != nil {
		middlewares = append(middlewares,
			provider.WithMetrics[transcription.TranscriptionRequest, *transcription.TranscriptionResponse](r.metrics))
	}
	r.exec = provider.Chain(middlewares...)(transcription.AsRequestResponse(r.backend))

	r.files = files
	r.initialized = true
	r.log.Info("reader initialized", logger.Fields(
		"files", len(files),
		"backend", r.backend.Name(),
		"model_size", r.cfg.ModelSize,
		"device", r.cfg.Device,
		"compute_type", r.cfg.ComputeType,
		"beam_size", r.cfg.BeamSize,
		"combine_segments", r.cfg.CombineSegments,
	))
	return nil
}

// Files returns the resolved input files in processing order.
func (r *Reader) Files() []string {
	return append([]string(nil), r.files...)
}

// Remaining returns how many files have not been read yet.
func (r *Reader) Remaining() int { return len(r.files) - r.cursor }

// HasFinished reports whether every file has been read. It is false before
// Initialize.
func (r *Reader) HasFinished() bool {
	return r.initialized && r.cursor >= len(r.files)
}

// CurrentInput returns the file taken by the latest Read, or "".
func (r *Reader) CurrentInput() string { return r.current }

// Read advances to the next file and returns an iterator over its results.
// The file is transcribed on the iterator's first Next. Read fails before
// Initialize and once HasFinished is true.
func (r *Reader) Read(ctx context.Context) (provider.Iterator[Result], error) {
	if !r.initialized {
		return nil, errors.New(errors.ErrCodeInvalidInput, "reader is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.HasFinished() {
		return nil, errors.NotFound("input file", "").WithDetail("files", len(r.files))
	}
	file := r.files[r.cursor]
	r.cursor++
	r.current = file
	return &fileIterator{r: r, file: file}, nil
}

// Close releases the backend. It is safe to call more than once.
func (r *Reader) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		if r.backend != nil {
			r.closeErr = provider.CloseIfNeeded(ctx, r.backend)
		}
	})
	return r.closeErr
}

// transcribe produces the results of one file. It returns an error only when
// ctx ended; any other failure becomes a failed Result.
func (r *Reader) transcribe(ctx context.Context, file string) ([]Result, error) {
	op := observability.NewFileOperation(Name, r.runID, file, r.metrics)
	ctx, span := op.Start(ctx)

	r.log.Info("Reading from: "+file, logger.Fields(logger.FieldFile, file))

	resp, err := r.exec.Execute(ctx, transcription.TranscriptionRequest{
		AudioPath: file,
		BeamSize:  r.cfg.BeamSize,
		Language:  r.cfg.Language,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			op.End(ctx, span, 0, 0, 0, ctxErr)
			return nil, ctxErr
		}
		failure := errors.TranscriptionFailed(file, err)
		r.log.Error("Failed to read from: "+file, logger.MergeWithError(logger.Fields(
			logger.FieldFile, file,
			logger.FieldRunID, r.runID,
		), err))
		op.End(ctx, span, 0, 0, 0, failure)
		return []Result{{Input: file, Err: failure}}, nil
	}
	if resp == nil {
		resp = &transcription.TranscriptionResponse{}
	}

	results := r.records(file, resp.Segments)
	op.End(ctx, span, len(resp.Segments), len(results), resp.Duration, nil)
	return results, nil
}

// records shapes segments into results: one per segment, or a single
// newline-joined record with CombineSegments.
func (r *Reader) records(file string, segments []transcription.Segment) []Result {
	if r.cfg.CombineSegments {
		texts := lo.Map(segments, func(s transcription.Segment, _ int) string { return s.Text })
		return []Result{{
			Input: file,
			Data: &pretrain.Data{
				Content: strings.Join(texts, "\n"),
				Meta:    map[string]any{pretrain.MetaFile: file},
			},
		}}
	}
	return lo.Map(segments, func(s transcription.Segment, _ int) Result {
		return Result{
			Input: file,
			Data: &pretrain.Data{
				Content: s.Text,
				Meta: map[string]any{
					pretrain.MetaFile:  file,
					pretrain.MetaStart: s.Start,
					pretrain.MetaEnd:   s.End,
				},
			},
		}
	})
}

// fileIterator yields the results of one file, transcribing on first Next.
type fileIterator struct {
	r       *Reader
	file    string
	pending []Result
	started bool
	closed  bool
}

func (it *fileIterator) Next(ctx context.Context) (Result, bool, error) {
	if it.closed {
		return Result{}, false, nil
	}
	if !it.started {
		if err := ctx.Err(); err != nil {
			return Result{}, false, err
		}
		it.started = true
		results, err := it.r.transcribe(ctx, it.file)
		if err != nil {
			return Result{}, false, err
		}
		it.pending = results
	}
	if len(it.pending) == 0 {
		return Result{}, false, nil
	}
	res := it.pending[0]
	it.pending = it.pending[1:]
	return res, true, nil
}

func (it *fileIterator) Close() error {
	it.closed = true
	it.pending = nil
	return nil
}

// Results drains r file by file as a pipeline. r must be initialized.
func Results(r *Reader) *pipeline.Pipeline[Result] {
	return pipeline.FromFunc(func(context.Context) pipeline.Iterator[Result] {
		return &readerIterator{r: r}
	})
}

type readerIterator struct {
	r    *Reader
	file provider.Iterator[Result]
}

func (it *readerIterator) Next(ctx context.Context) (Result, bool, error) {
	for {
		if it.file == nil {
			if it.r.HasFinished() {
				return Result{}, false, nil
			}
			next, err := it.r.Read(ctx)
			if err != nil {
				return Result{}, false, err
			}
			it.file = next
		}
		res, ok, err := it.file.Next(ctx)
		if err != nil {
			return Result{}, false, err
		}
		if ok {
			return res, true, nil
		}
		_ = it.file.Close()
		it.file = nil
	}
}

func (it *readerIterator) Close() error {
	if it.file != nil {
		return it.file.Close()
	}
	return nil
}
