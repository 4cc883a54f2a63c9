// Package fasterwhisper implements transcription.Provider on a local
// faster-whisper installation. A Python worker process loads the model once
// at Init and serves one transcription per JSON line until Close.
package fasterwhisper

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/fwaudio/errors"
	"github.com/kbukum/fwaudio/logger"
	"github.com/kbukum/fwaudio/process"
	"github.com/kbukum/fwaudio/provider"
	"github.com/kbukum/fwaudio/transcription"
)

//go:embed worker.py
var workerScript string

const (
	// ProviderName is the registered name for the local faster-whisper provider.
	ProviderName = "fasterwhisper"

	// KeyPython is the factory config key for the Python interpreter.
	KeyPython = "python"

	defaultPython       = "python3"
	defaultStartTimeout = 10 * time.Minute
	stopGrace           = 2 * time.Second
	maxEchoedLine       = 256
)

var (
	_ transcription.Provider = (*Provider)(nil)
	_ provider.Initializable = (*Provider)(nil)
	_ provider.Closeable     = (*Provider)(nil)
)

// Config holds configuration for the faster-whisper worker.
type Config struct {
	// Python is the interpreter with faster-whisper installed.
	Python      string `mapstructure:"python"`
	ModelSize   string `mapstructure:"model_size"`
	Device      string `mapstructure:"device"`
	ComputeType string `mapstructure:"compute_type"`
	BeamSize    int    `mapstructure:"beam_size"`
	Language    string `mapstructure:"language"`
	// StartTimeout bounds model loading, which may include a download.
	StartTimeout time.Duration `mapstructure:"start_timeout"`
	// Env is added to the worker environment (e.g. CUDA_VISIBLE_DEVICES=0).
	Env []string `mapstructure:"env"`
}

// Provider drives a faster-whisper worker process. Calls are serialized.
type Provider struct {
	cfg Config
	log *logger.Logger

	mu     sync.Mutex
	worker *process.Worker
	nextID int64
}

// NewProvider creates a provider. The worker starts on Init or on first use.
func NewProvider(cfg Config) *Provider {
	if cfg.Python == "" {
		cfg.Python = defaultPython
	}
	if cfg.ModelSize == "" {
		cfg.ModelSize = transcription.DefaultModelSize
	}
	if cfg.Device == "" {
		cfg.Device = transcription.DefaultDevice
	}
	if cfg.ComputeType == "" {
		cfg.ComputeType = transcription.DefaultComputeType
	}
	if cfg.BeamSize <= 0 {
		cfg.BeamSize = transcription.DefaultBeamSize
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	return &Provider{cfg: cfg, log: logger.Get(ProviderName)}
}

// Factory returns a provider.Factory that creates faster-whisper providers
// from a generic config map.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		return NewProvider(Config{
			Python:       transcription.String(cfg, KeyPython, ""),
			ModelSize:    transcription.String(cfg, transcription.KeyModelSize, ""),
			Device:       transcription.String(cfg, transcription.KeyDevice, ""),
			ComputeType:  transcription.String(cfg, transcription.KeyComputeType, ""),
			BeamSize:     transcription.Int(cfg, transcription.KeyBeamSize, 0),
			Language:     transcription.String(cfg, transcription.KeyLanguage, ""),
			StartTimeout: transcription.Duration(cfg, transcription.KeyTimeout, 0),
		}), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Config returns the effective configuration.
func (p *Provider) Config() Config { return p.cfg }

// IsAvailable reports whether a worker is running or, failing that, whether
// the interpreter can import faster_whisper.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	p.mu.Lock()
	running := p.worker != nil && !p.worker.Exited()
	p.mu.Unlock()
	if running {
		return true
	}
	_, err := process.Run(ctx, process.Command{
		Binary: p.cfg.Python,
		Args:   []string{"-c", "import faster_whisper"},
		Env:    p.cfg.Env,
	})
	return err == nil
}

// Init starts the worker and waits for the model to load.
func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx)
}

// Close stops the worker, releasing the model.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.worker == nil {
		return nil
	}
	err := p.worker.Stop(ctx)
	p.worker = nil
	p.log.Debug("worker stopped")
	return err
}

// Transcribe sends one file to the worker and waits for its segments.
// A worker that died is restarted on the next call.
func (p *Provider) Transcribe(ctx context.Context, req transcription.TranscriptionRequest) (*transcription.TranscriptionResponse, error) {
	if req.Model != "" && req.Model != p.cfg.ModelSize {
		return nil, errors.InvalidInput("model",
			fmt.Sprintf("worker is bound to model %q, got %q", p.cfg.ModelSize, req.Model))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.startLocked(ctx); err != nil {
		return nil, err
	}

	p.nextID++
	wreq := workerRequest{
		ID:       p.nextID,
		Audio:    req.AudioPath,
		BeamSize: p.cfg.BeamSize,
		Language: p.cfg.Language,
	}
	if req.BeamSize > 0 {
		wreq.BeamSize = req.BeamSize
	}
	if req.Language != "" {
		wreq.Language = req.Language
	}

	line, err := json.Marshal(wreq)
	if err != nil {
		return nil, fmt.Errorf("encode worker request: %w", err)
	}
	if _, err := p.worker.Stdin().Write(append(line, '\n')); err != nil {
		return nil, p.workerGone(err)
	}

	for {
		msg, err := p.readMessage(ctx)
		if err != nil {
			return nil, err
		}
		if msg.ID != wreq.ID {
			p.log.Warn("discarding stale worker reply", logger.Fields("id", msg.ID, "want", wreq.ID))
			continue
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("faster-whisper: %s", msg.Error)
		}
		return msg.response(), nil
	}
}

func (p *Provider) args() []string {
	return []string{
		"-u", "-c", workerScript,
		"--model", p.cfg.ModelSize,
		"--device", p.cfg.Device,
		"--compute_type", p.cfg.ComputeType,
	}
}

// startLocked starts the worker if none is running. Callers hold p.mu.
func (p *Provider) startLocked(ctx context.Context) error {
	if p.worker != nil {
		if !p.worker.Exited() {
			return nil
		}
		p.log.Warn("worker exited, restarting", logger.Fields("exit_code", p.worker.ExitCode()))
		_ = p.worker.Stop(ctx)
		p.worker = nil
	}

	start := time.Now()
	w, err := process.Start(ctx, process.Command{
		Binary:      p.cfg.Python,
		Args:        p.args(),
		Env:         p.cfg.Env,
		GracePeriod: stopGrace,
	})
	if err != nil {
		return errors.ServiceUnavailable(ProviderName).WithCause(err)
	}
	p.worker = w

	startCtx, cancel := context.WithTimeout(ctx, p.cfg.StartTimeout)
	defer cancel()

	msg, err := p.readMessage(startCtx)
	if err != nil {
		p.stopLocked()
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.Timeout("load model").WithCause(err).WithDetail("model", p.cfg.ModelSize)
		}
		return err
	}
	if msg.Error != "" || !msg.Ready {
		stderr := strings.TrimSpace(p.worker.Stderr())
		p.stopLocked()
		reason := msg.Error
		if reason == "" {
			reason = "worker did not report ready"
		}
		return errors.ServiceUnavailable(ProviderName).
			WithCause(stderrors.New(reason)).
			WithDetail("model", p.cfg.ModelSize).
			WithDetail("stderr", stderr)
	}

	p.log.Info("model loaded", logger.MergeWithDuration(logger.Fields(
		"model", p.cfg.ModelSize,
		"device", p.cfg.Device,
		"compute_type", p.cfg.ComputeType,
		"pid", w.Pid(),
	), time.Since(start)))
	return nil
}

// readMessage returns the next JSON line from the worker, skipping anything
// else the worker's libraries print. Cancelling ctx stops the worker since
// the reply stream is no longer in step with requests.
func (p *Provider) readMessage(ctx context.Context) (*workerMessage, error) {
	w := p.worker
	for {
		type lineResult struct {
			line []byte
			err  error
		}
		ch := make(chan lineResult, 1)
		go func() {
			line, err := w.Stdout().ReadBytes('\n')
			ch <- lineResult{line: line, err: err}
		}()

		var r lineResult
		select {
		case r = <-ch:
		case <-ctx.Done():
			p.stopLocked()
			return nil, ctx.Err()
		}
		if r.err != nil {
			return nil, p.workerGone(r.err)
		}

		line := bytes.TrimSpace(r.line)
		if len(line) == 0 || line[0] != '{' {
			p.log.Debug("worker output", logger.Fields("line", truncate(line)))
			continue
		}
		var msg workerMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("decode worker reply %q: %w", truncate(line), err)
		}
		return &msg, nil
	}
}

// workerGone stops the worker after a broken pipe or EOF and reports it with
// the tail of its stderr.
func (p *Provider) workerGone(cause error) error {
	appErr := errors.ServiceUnavailable(ProviderName).WithCause(fmt.Errorf("worker exited: %w", cause))
	if w := p.worker; w != nil {
		p.stopLocked()
		appErr.WithDetail("exit_code", w.ExitCode()).
			WithDetail("stderr", strings.TrimSpace(w.Stderr()))
	}
	return appErr
}

func (p *Provider) stopLocked() {
	if p.worker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*stopGrace+time.Second)
	defer cancel()
	_ = p.worker.Stop(ctx)
	p.worker = nil
}

func truncate(b []byte) string {
	if len(b) > maxEchoedLine {
		return string(b[:maxEchoedLine]) + "..."
	}
	return string(b)
}

type workerRequest struct {
	ID       int64  `json:"id"`
	Audio    string `json:"audio"`
	BeamSize int    `json:"beam_size"`
	Language string `json:"language,omitempty"`
}

type workerMessage struct {
	ID       int64           `json:"id"`
	Ready    bool            `json:"ready"`
	Error    string          `json:"error"`
	Language string          `json:"language"`
	Duration float64         `json:"duration"`
	Segments []workerSegment `json:"segments"`
}

type workerSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (m *workerMessage) response() *transcription.TranscriptionResponse {
	segments := make([]transcription.Segment, len(m.Segments))
	texts := make([]string, len(m.Segments))
	for i, s := range m.Segments {
		segments[i] = transcription.Segment{Start: s.Start, End: s.End, Text: s.Text}
		texts[i] = s.Text
	}
	return &transcription.TranscriptionResponse{
		Text:     strings.TrimSpace(strings.Join(texts, "")),
		Segments: segments,
		Duration: m.Duration,
		Language: m.Language,
	}
}
