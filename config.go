package fwaudio

import (
	"time"

	"github.com/kbukum/fwaudio/transcription"
	"github.com/kbukum/fwaudio/transcription/fasterwhisper"
	"github.com/kbukum/fwaudio/transcription/whisper"
	"github.com/kbukum/fwaudio/validation"
)

// Default reader settings.
const (
	DefaultModelSize = transcription.DefaultModelSize
	DefaultDevice    = transcription.DefaultDevice
	DefaultBeamSize  = transcription.DefaultBeamSize
	DefaultBackend   = fasterwhisper.ProviderName

	// DefaultComputeType applies when a Config leaves ComputeType unset.
	DefaultComputeType = transcription.DefaultComputeType
	// DefaultCLIComputeType is the --compute_type flag default. It differs
	// from DefaultComputeType; both are kept until one is chosen upstream.
	DefaultCLIComputeType = "int8"
)

// Config holds the reader options.
type Config struct {
	// Input lists audio paths or glob patterns.
	Input []string `yaml:"input" mapstructure:"input"`
	// InputList lists text files naming one audio path per line.
	InputList []string `yaml:"input_list" mapstructure:"input_list"`
	// CombineSegments emits one record per file instead of one per segment.
	CombineSegments bool `yaml:"combine_segments" mapstructure:"combine_segments"`

	ModelSize   string `yaml:"model_size" mapstructure:"model_size" validate:"required"`
	// Device is passed to the model as given, e.g. cpu, cuda or auto.
	Device      string `yaml:"device" mapstructure:"device" validate:"required"`
	ComputeType string `yaml:"compute_type" mapstructure:"compute_type" validate:"required,oneof=default auto int8 int8_float16 int8_float32 int8_bfloat16 int16 float16 bfloat16 float32"`
	BeamSize    int    `yaml:"beam_size" mapstructure:"beam_size" validate:"gte=1"`
	// Language forces the transcription language. Empty means detect.
	Language string `yaml:"language" mapstructure:"language"`

	// Backend names the transcription provider.
	Backend string        `yaml:"backend" mapstructure:"backend" validate:"required"`
	Python  string        `yaml:"python" mapstructure:"python"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Whisper WhisperConfig `yaml:"whisper" mapstructure:"whisper"`
}

// WhisperConfig configures the HTTP sidecar backend.
type WhisperConfig struct {
	URL      string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	RetryMax int    `yaml:"retry_max" mapstructure:"retry_max" validate:"gte=0"`
}

// ApplyDefaults fills unset options.
func (c *Config) ApplyDefaults() {
	if c.ModelSize == "" {
		c.ModelSize = DefaultModelSize
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.ComputeType == "" {
		c.ComputeType = DefaultComputeType
	}
	if c.BeamSize == 0 {
		c.BeamSize = DefaultBeamSize
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
}

// Validate checks the options. Call ApplyDefaults first.
func (c *Config) Validate() error {
	return validation.Struct(c)
}

// ProviderConfig returns the factory config map for the configured backend.
func (c *Config) ProviderConfig() map[string]any {
	cfg := map[string]any{
		transcription.KeyModelSize:   c.ModelSize,
		transcription.KeyDevice:      c.Device,
		transcription.KeyComputeType: c.ComputeType,
		transcription.KeyBeamSize:    c.BeamSize,
		transcription.KeyLanguage:    c.Language,
		transcription.KeyTimeout:     c.Timeout,
	}
	switch c.Backend {
	case fasterwhisper.ProviderName:
		cfg[fasterwhisper.KeyPython] = c.Python
	case whisper.ProviderName:
		cfg[whisper.KeyURL] = c.Whisper.URL
		cfg[whisper.KeyRetryMax] = c.Whisper.RetryMax
	}
	return cfg
}
