package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/kbukum/fwaudio/errors"
	"github.com/kbukum/fwaudio/logger"
	"github.com/kbukum/fwaudio/provider"
	"github.com/kbukum/fwaudio/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	// KeyURL is the factory config key for the sidecar base URL.
	KeyURL = "url"
	// KeyRetryMax is the factory config key for transport retries.
	KeyRetryMax = "retry_max"

	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperTimeout = 120 * time.Second
	retryWaitMin          = 100 * time.Millisecond
	retryWaitMax          = 2 * time.Second
	maxErrorBody          = 4 << 10
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	URL         string        `json:"url" yaml:"url" mapstructure:"url"`
	Model       string        `json:"model" yaml:"model" mapstructure:"model"`
	Language    string        `json:"language,omitempty" yaml:"language" mapstructure:"language"`
	Device      string        `json:"device,omitempty" yaml:"device" mapstructure:"device"`
	ComputeType string        `json:"compute_type,omitempty" yaml:"compute_type" mapstructure:"compute_type"`
	BeamSize    int           `json:"beam_size,omitempty" yaml:"beam_size" mapstructure:"beam_size"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// RetryMax bounds transport-level retries on connection errors and 5xx
	// responses. Zero sends each request once.
	RetryMax int `json:"retry_max" yaml:"retry_max" mapstructure:"retry_max"`
}

// Provider implements transcription.Provider using a faster-whisper HTTP sidecar.
type Provider struct {
	cfg    Config
	client *retryablehttp.Client
	log    *logger.Logger
}

// NewProvider creates a new Whisper transcription provider.
func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Model == "" {
		cfg.Model = transcription.DefaultModelSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}

	log := logger.Get(ProviderName)

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = leveledLogger{log: log}
	// Keep the final response so sidecar error bodies reach the caller.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Provider{cfg: cfg, client: client, log: log}
}

// Factory returns a provider.Factory that creates Whisper Provider
// instances from a generic config map.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		wc := Config{
			URL:         transcription.String(cfg, KeyURL, ""),
			Model:       transcription.String(cfg, transcription.KeyModelSize, ""),
			Language:    transcription.String(cfg, transcription.KeyLanguage, ""),
			Device:      transcription.String(cfg, transcription.KeyDevice, ""),
			ComputeType: transcription.String(cfg, transcription.KeyComputeType, ""),
			BeamSize:    transcription.Int(cfg, transcription.KeyBeamSize, 0),
			Timeout:     transcription.Duration(cfg, transcription.KeyTimeout, 0),
			RetryMax:    transcription.Int(cfg, KeyRetryMax, 0),
		}
		return NewProvider(wc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Config returns the effective configuration.
func (p *Provider) Config() Config { return p.cfg }

// IsAvailable checks if the Whisper sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe sends an audio file to the Whisper sidecar and returns the transcription.
func (p *Provider) Transcribe(ctx context.Context, req transcription.TranscriptionRequest) (*transcription.TranscriptionResponse, error) {
	audioData, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	body, contentType, err := p.buildForm(req, audioData)
	if err != nil {
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/transcribe", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	// With the passthrough handler a final 5xx arrives as both a response
	// and an error; only a missing response means the sidecar was unreachable.
	resp, err := p.client.Do(httpReq)
	if resp == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.ServiceUnavailable(ProviderName).WithCause(err).WithDetail("url", p.cfg.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.ExternalServiceError(ProviderName,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))).
			WithDetail("status", resp.StatusCode)
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	return toTranscriptionResponse(&result), nil
}

// buildForm encodes the audio and decoding options as multipart form data.
func (p *Provider) buildForm(req transcription.TranscriptionRequest, audio []byte) ([]byte, string, error) {
	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := p.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}
	beam := p.cfg.BeamSize
	if req.BeamSize > 0 {
		beam = req.BeamSize
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", model},
		{"language", lang},
		{"device", p.cfg.Device},
		{"compute_type", p.cfg.ComputeType},
	}
	if beam > 0 {
		fields = append(fields, [2]string{"beam_size", strconv.Itoa(beam)})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// --- internal Whisper API response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func toTranscriptionResponse(resp *whisperResponse) *transcription.TranscriptionResponse {
	segments := make([]transcription.Segment, len(resp.Segments))
	for i, seg := range resp.Segments {
		segments[i] = transcription.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
	}

	duration := resp.Duration
	if duration == 0 && len(resp.Segments) > 0 {
		duration = resp.Segments[len(resp.Segments)-1].End
	}

	return &transcription.TranscriptionResponse{
		Text:     resp.Text,
		Segments: segments,
		Duration: duration,
		Language: resp.Language,
	}
}

// leveledLogger routes retryablehttp logs through the component logger.
type leveledLogger struct {
	log *logger.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error(msg, logger.Fields(kv...)) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn(msg, logger.Fields(kv...)) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug(msg, logger.Fields(kv...)) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug(msg, logger.Fields(kv...)) }
