package fwaudio

import (
	"bytes"
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/fwaudio/errors"
	"github.com/kbukum/fwaudio/locate"
	"github.com/kbukum/fwaudio/logger"
	"github.com/kbukum/fwaudio/observability"
	"github.com/kbukum/fwaudio/pipeline"
	"github.com/kbukum/fwaudio/pretrain"
	"github.com/kbukum/fwaudio/provider"
	"github.com/kbukum/fwaudio/transcription"
)

type fakeBackend struct {
	segments map[string][]transcription.Segment
	fail     map[string]error
	calls    []transcription.TranscriptionRequest
	initErr  error
	inits    int
	closes   int
}

func (f *fakeBackend) Name() string                     { return "fake" }
func (f *fakeBackend) IsAvailable(context.Context) bool { return true }

func (f *fakeBackend) Init(context.Context) error {
	f.inits++
	return f.initErr
}

func (f *fakeBackend) Close(context.Context) error {
	f.closes++
	return nil
}

func (f *fakeBackend) Transcribe(ctx context.Context, req transcription.TranscriptionRequest) (*transcription.TranscriptionResponse, error) {
	f.calls = append(f.calls, req)
	if err := f.fail[req.AudioPath]; err != nil {
		return nil, err
	}
	return &transcription.TranscriptionResponse{Segments: f.segments[req.AudioPath], Duration: 2}, nil
}

func (f *fakeBackend) paths() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.AudioPath
	}
	return out
}

var hiThere = []transcription.Segment{
	{Text: "hi", Start: 0.0, End: 1.0},
	{Text: "there", Start: 1.0, End: 2.0},
}

func memLocator(t *testing.T, files map[string]string) *locate.Locator {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return locate.New(fs)
}

// inputFiles creates an empty file for every plain input path.
func inputFiles(cfg Config) map[string]string {
	files := make(map[string]string)
	for _, in := range cfg.Input {
		if !strings.ContainsAny(in, "*?[") {
			files[in] = ""
		}
	}
	return files
}

func newTestReader(t *testing.T, cfg Config, backend *fakeBackend, opts ...Option) *Reader {
	t.Helper()
	opts = append([]Option{
		WithProvider(backend),
		WithLocator(memLocator(t, inputFiles(cfg))),
		WithLogger(logger.Nop()),
	}, opts...)
	r := NewReader(cfg, opts...)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func readFile(t *testing.T, r *Reader) []Result {
	t.Helper()
	ctx := context.Background()
	it, err := r.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	results, err := provider.Collect(ctx, it)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return results
}

func TestReaderPerSegment(t *testing.T) {
	backend := &fakeBackend{segments: map[string][]transcription.Segment{"F.wav": hiThere}}
	r := newTestReader(t, Config{Input: []string{"F.wav"}}, backend)

	results := readFile(t, r)
	if len(results) != 2 {
		t.Fatalf("expected 2 records, got %d", len(results))
	}
	want := []pretrain.Data{
		{Content: "hi", Meta: map[string]any{"file": "F.wav", "start": 0.0, "end": 1.0}},
		{Content: "there", Meta: map[string]any{"file": "F.wav", "start": 1.0, "end": 2.0}},
	}
	for i, res := range results {
		if !res.OK() || res.Input != "F.wav" {
			t.Fatalf("result %d: %+v", i, res)
		}
		if !reflect.DeepEqual(*res.Data, want[i]) {
			t.Errorf("result %d = %+v, want %+v", i, *res.Data, want[i])
		}
	}
}

func TestReaderCombineSegments(t *testing.T) {
	backend := &fakeBackend{segments: map[string][]transcription.Segment{"F.wav": hiThere}}
	r := newTestReader(t, Config{Input: []string{"F.wav"}, CombineSegments: true}, backend)

	results := readFile(t, r)
	if len(results) != 1 {
		t.Fatalf("expected 1 record, got %d", len(results))
	}
	want := pretrain.Data{Content: "hi\nthere", Meta: map[string]any{"file": "F.wav"}}
	if !reflect.DeepEqual(*results[0].Data, want) {
		t.Errorf("got %+v, want %+v", *results[0].Data, want)
	}
}

func TestReaderCombineEmptyTranscript(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestReader(t, Config{Input: []string{"silence.wav"}, CombineSegments: true}, backend)

	results := readFile(t, r)
	if len(results) != 1 || !results[0].OK() {
		t.Fatalf("expected one record, got %+v", results)
	}
	if results[0].Data.Content != "" {
		t.Errorf("expected empty content, got %q", results[0].Data.Content)
	}
}

func TestReaderPerSegmentEmptyTranscript(t *testing.T) {
	r := newTestReader(t, Config{Input: []string{"silence.wav"}}, &fakeBackend{})
	if results := readFile(t, r); len(results) != 0 {
		t.Errorf("expected no records, got %+v", results)
	}
	if !r.HasFinished() {
		t.Error("expected finished")
	}
}

func TestReaderFailureContinues(t *testing.T) {
	cause := stderrors.New("decoder exploded")
	backend := &fakeBackend{
		segments: map[string][]transcription.Segment{"a.wav": hiThere[:1], "c.wav": hiThere[1:]},
		fail:     map[string]error{"b.wav": cause},
	}
	var logs bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "test", &logs)
	r := newTestReader(t, Config{Input: []string{"a.wav", "b.wav", "c.wav"}}, backend, WithLogger(log))

	if got := readFile(t, r); len(got) != 1 || got[0].Data.Content != "hi" {
		t.Fatalf("a.wav: %+v", got)
	}

	failed := readFile(t, r)
	if len(failed) != 1 {
		t.Fatalf("expected exactly one failure result, got %d", len(failed))
	}
	if failed[0].OK() || failed[0].Data != nil || failed[0].Input != "b.wav" {
		t.Errorf("unexpected failure result %+v", failed[0])
	}
	if !errors.IsCode(failed[0].Err, errors.ErrCodeTranscriptionFailed) {
		t.Errorf("expected TRANSCRIPTION_FAILED, got %v", failed[0].Err)
	}
	if !stderrors.Is(failed[0].Err, cause) {
		t.Errorf("expected cause to be wrapped, got %v", failed[0].Err)
	}
	if r.HasFinished() {
		t.Fatal("finished too early")
	}

	if got := readFile(t, r); len(got) != 1 || got[0].Data.Content != "there" {
		t.Fatalf("c.wav: %+v", got)
	}
	if !r.HasFinished() {
		t.Error("expected finished after three reads")
	}

	out := logs.String()
	for _, want := range []string{"Reading from: a.wav", "Reading from: b.wav", "Failed to read from: b.wav", "decoder exploded"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %q", want)
		}
	}
	if len(backend.calls) != 3 {
		t.Errorf("expected no retry, got %d calls", len(backend.calls))
	}
}

func TestReaderHasFinishedAfterExactlyLenReads(t *testing.T) {
	inputs := []string{"1.wav", "2.wav", "3.wav", "4.wav"}
	backend := &fakeBackend{fail: map[string]error{"2.wav": stderrors.New("boom")}}
	r := newTestReader(t, Config{Input: inputs}, backend)

	for i := range inputs {
		if r.HasFinished() {
			t.Fatalf("finished after %d reads", i)
		}
		if r.Remaining() != len(inputs)-i {
			t.Errorf("remaining = %d, want %d", r.Remaining(), len(inputs)-i)
		}
		readFile(t, r)
		if r.CurrentInput() != inputs[i] {
			t.Errorf("current input = %q, want %q", r.CurrentInput(), inputs[i])
		}
	}
	for range 3 {
		if !r.HasFinished() {
			t.Fatal("expected finished to stay true")
		}
	}

	_, err := r.Read(context.Background())
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND after exhaustion, got %v", err)
	}
}

func TestReaderOrderPreserved(t *testing.T) {
	loc := memLocator(t, map[string]string{
		"/audio/b.wav": "",
		"/audio/a.wav": "",
		"/audio/c.mp3": "",
		"/list.txt":    "z.wav\n\n  y.wav  \n",
		"first.wav":    "",
		"z.wav":        "",
		"y.wav":        "",
	})
	backend := &fakeBackend{segments: map[string][]transcription.Segment{
		"first.wav": {{Text: "3"}, {Text: "1"}, {Text: "2"}},
	}}
	r := newTestReader(t, Config{
		Input:     []string{"first.wav", "/audio/*.wav"},
		InputList: []string{"/list.txt"},
	}, backend, WithLocator(loc))

	wantFiles := []string{"first.wav", "/audio/a.wav", "/audio/b.wav", "z.wav", "y.wav"}
	if got := r.Files(); !reflect.DeepEqual(got, wantFiles) {
		t.Fatalf("files = %v, want %v", got, wantFiles)
	}

	results, err := pipeline.Collect(context.Background(), Results(r))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !reflect.DeepEqual(backend.paths(), wantFiles) {
		t.Errorf("transcribed %v, want %v", backend.paths(), wantFiles)
	}
	var texts []string
	for _, res := range results {
		texts = append(texts, res.Data.Content)
	}
	if strings.Join(texts, ",") != "3,1,2" {
		t.Errorf("segment order = %v", texts)
	}
}

func TestReaderNoInputs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"nothing configured", Config{}},
		{"glob without matches", Config{Input: []string{"/audio/*.wav"}}},
		{"empty list file", Config{InputList: []string{"/empty.txt"}}},
		{"missing file", Config{Input: []string{"/nope/missing.wav"}}},
		{"list of missing files", Config{InputList: []string{"/stale.txt"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{}
			r := NewReader(tc.cfg,
				WithProvider(backend),
				WithLocator(memLocator(t, map[string]string{
					"/empty.txt": "\n\n",
					"/stale.txt": "/gone/a.wav\n/gone/b.mp3\n",
				})),
				WithLogger(logger.Nop()),
			)
			err := r.Initialize(context.Background())
			if !errors.IsCode(err, errors.ErrCodeNoInputs) {
				t.Fatalf("expected NO_INPUTS, got %v", err)
			}
			if errors.ExitCode(err) != errors.ExitNoInputs {
				t.Errorf("exit code = %d", errors.ExitCode(err))
			}
			if backend.inits != 0 {
				t.Error("backend must not load without inputs")
			}
			if r.HasFinished() {
				t.Error("uninitialized reader must not report finished")
			}
		})
	}
}

func TestReaderDefaults(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestReader(t, Config{Input: []string{"a.wav"}}, backend)

	cfg := r.Config()
	if cfg.ModelSize != "base" || cfg.Device != "cpu" || cfg.ComputeType != "float16" || cfg.BeamSize != 5 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.CombineSegments {
		t.Error("combine_segments should default to false")
	}
	if cfg.Backend != DefaultBackend {
		t.Errorf("backend = %q", cfg.Backend)
	}

	readFile(t, r)
	if backend.calls[0].BeamSize != 5 {
		t.Errorf("beam size passed = %d", backend.calls[0].BeamSize)
	}
}

func TestReaderLifecycle(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestReader(t, Config{Input: []string{"a.wav", "b.wav"}, BeamSize: 2}, backend)
	ctx := context.Background()

	if err := r.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if backend.inits != 1 {
		t.Errorf("expected model loaded once, got %d", backend.inits)
	}

	readFile(t, r)
	readFile(t, r)
	if backend.inits != 1 {
		t.Errorf("expected no reload per file, got %d", backend.inits)
	}
	if backend.calls[1].BeamSize != 2 {
		t.Errorf("beam size = %d", backend.calls[1].BeamSize)
	}

	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if backend.closes != 1 {
		t.Errorf("expected one backend close, got %d", backend.closes)
	}
}

func TestReaderInitErrors(t *testing.T) {
	t.Run("backend init failure", func(t *testing.T) {
		backend := &fakeBackend{initErr: errors.ServiceUnavailable("fake")}
		r := NewReader(Config{Input: []string{"a.wav"}}, WithProvider(backend), WithLogger(logger.Nop()),
			WithLocator(memLocator(t, map[string]string{"a.wav": ""})))
		err := r.Initialize(context.Background())
		if !errors.IsCode(err, errors.ErrCodeServiceUnavailable) {
			t.Fatalf("expected SERVICE_UNAVAILABLE, got %v", err)
		}
		if _, err := r.Read(context.Background()); err == nil {
			t.Error("expected Read to fail on uninitialized reader")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		r := NewReader(Config{Input: []string{"a.wav"}, Backend: "nemo"}, WithLogger(logger.Nop()),
			WithLocator(memLocator(t, map[string]string{"a.wav": ""})))
		err := r.Initialize(context.Background())
		if !errors.IsCode(err, errors.ErrCodeNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		r := NewReader(Config{Input: []string{"a.wav"}, ComputeType: "float8", BeamSize: -1},
			WithProvider(&fakeBackend{}), WithLogger(logger.Nop()), WithLocator(memLocator(t, map[string]string{"a.wav": ""})))
		err := r.Initialize(context.Background())
		if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
			t.Fatalf("expected INVALID_INPUT, got %v", err)
		}
		for _, field := range []string{"compute_type", "beam_size"} {
			if !strings.Contains(err.Error(), field) {
				t.Errorf("expected %s in %v", field, err)
			}
		}
	})
}

func TestReaderRegistryBackend(t *testing.T) {
	var got map[string]any
	backend := &fakeBackend{}
	reg := transcription.NewRegistry()
	reg.RegisterFactory("fake", func(cfg map[string]any) (transcription.Provider, error) {
		got = cfg
		return backend, nil
	})

	r := NewReader(Config{Input: []string{"a.wav"}, Backend: "fake", ModelSize: "tiny", Device: "cuda", ComputeType: "int8"},
		WithRegistry(reg), WithLogger(logger.Nop()), WithLocator(memLocator(t, map[string]string{"a.wav": ""})))
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if got[transcription.KeyModelSize] != "tiny" || got[transcription.KeyDevice] != "cuda" || got[transcription.KeyComputeType] != "int8" {
		t.Errorf("unexpected factory config %v", got)
	}
	if backend.inits != 1 {
		t.Error("expected registry-created backend to be initialized")
	}
}

func TestReaderContextCanceled(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestReader(t, Config{Input: []string{"a.wav"}}, backend)

	it, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := it.Next(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Error("expected no transcription after cancel")
	}
}

func TestReaderIteratorClose(t *testing.T) {
	backend := &fakeBackend{segments: map[string][]transcription.Segment{"a.wav": hiThere}}
	r := newTestReader(t, Config{Input: []string{"a.wav"}}, backend)
	ctx := context.Background()

	it, _ := r.Read(ctx)
	if _, ok, _ := it.Next(ctx); !ok {
		t.Fatal("expected a first record")
	}
	_ = it.Close()
	if _, ok, _ := it.Next(ctx); ok {
		t.Error("expected closed iterator to be exhausted")
	}
}

func TestResultsIncludesFailures(t *testing.T) {
	backend := &fakeBackend{
		segments: map[string][]transcription.Segment{"a.wav": hiThere},
		fail:     map[string]error{"b.wav": stderrors.New("bad header")},
	}
	r := newTestReader(t, Config{Input: []string{"a.wav", "b.wav"}, CombineSegments: true}, backend)

	results, err := pipeline.Collect(context.Background(), Results(r))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(results) != 2 || !results[0].OK() || results[1].OK() {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[1].Input != "b.wav" {
		t.Errorf("failure input = %q", results[1].Input)
	}
}

func TestReaderMetrics(t *testing.T) {
	mreader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(mreader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	backend := &fakeBackend{
		segments: map[string][]transcription.Segment{"a.wav": hiThere},
		fail:     map[string]error{"b.wav": stderrors.New("bad")},
	}
	r := newTestReader(t, Config{Input: []string{"a.wav", "b.wav"}}, backend, WithMetrics(metrics), WithRunID("run-1"))
	if _, err := pipeline.Collect(context.Background(), Results(r)); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := mreader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				key := m.Name
				if status, ok := dp.Attributes.Value(attribute.Key("status")); ok && m.Name == "fwaudio.files.total" {
					key += "/" + status.AsString()
				}
				counts[key] += dp.Value
			}
		}
	}
	want := map[string]int64{
		"fwaudio.files.total/ok":     1,
		"fwaudio.files.total/failed": 1,
		"fwaudio.segments.total":     2,
		"fwaudio.records.total":      2,
		"operation.total":            2,
	}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("%s = %d, want %d", name, counts[name], n)
		}
	}
}

func TestReaderNameAndDescription(t *testing.T) {
	r := NewReader(Config{})
	if r.Name() != "from-fwaudio-pt" {
		t.Errorf("name = %q", r.Name())
	}
	if !strings.Contains(r.Description(), ".wav") {
		t.Errorf("description = %q", r.Description())
	}
}
