package main

import (
	"io"

	"github.com/spf13/pflag"

	"github.com/kbukum/fwaudio"
	"github.com/kbukum/fwaudio/config"
	"github.com/kbukum/fwaudio/observability"
	"github.com/kbukum/fwaudio/pretrain"
	"github.com/kbukum/fwaudio/validation"
)

const (
	serviceName = "fwaudio"
	envPrefix   = "FWAUDIO"
)

type appConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Reader               fwaudio.Config       `yaml:",inline" mapstructure:",squash"`
	Output               string               `yaml:"output" mapstructure:"output"`
	Observability        observability.Config `yaml:"observability" mapstructure:"observability"`
}

func (c *appConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Reader.ApplyDefaults()
	if c.Output == "" {
		c.Output = pretrain.Stdout
	}
}

func (c *appConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return validation.New().Custom(false, "config", err.Error()).Err()
	}
	if err := c.Reader.Validate(); err != nil {
		return err
	}
	return validation.Struct(&c.Observability)
}

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false

	fs.StringArrayP("input", "i", nil, "audio file or glob pattern (.wav, .mp3); repeatable")
	fs.StringArrayP("input_list", "I", nil, "text file listing one audio path per line; repeatable")
	fs.BoolP("combine_segments", "1", false, "emit one record per file instead of one per segment")
	fs.StringP("model_size", "m", fwaudio.DefaultModelSize, "faster-whisper model")
	fs.StringP("device", "d", fwaudio.DefaultDevice, "execution device passed to the model, e.g. cpu, cuda or auto")
	fs.StringP("compute_type", "c", fwaudio.DefaultCLIComputeType, "model precision")
	fs.IntP("beam_size", "b", fwaudio.DefaultBeamSize, "decoder beam width")
	fs.String("language", "", "transcription language (default: detect)")
	fs.String("backend", fwaudio.DefaultBackend, "transcription backend: fasterwhisper or whisper")
	fs.String("python", "python3", "python interpreter with faster-whisper installed")
	fs.String("whisper_url", "http://localhost:8387", "faster-whisper sidecar URL for the whisper backend")
	fs.StringP("output", "o", pretrain.Stdout, "JSON lines output file, - for stdout")
	fs.String("config", "", "config file (default: search cmd/fwaudio/config.yml, config.yml)")
	fs.StringP("logging_level", "l", "", "log level: debug, info, warn, error")
	fs.Bool("check", false, "report backend availability and exit")
	fs.Bool("version", false, "print version and exit")
	return fs
}

// loadConfig merges config.yml, .env, FWAUDIO_* variables and flags.
func loadConfig(fs *pflag.FlagSet) (*appConfig, error) {
	path, _ := fs.GetString("config")

	var cfg appConfig
	err := config.LoadConfig(serviceName, &cfg,
		config.WithConfigFile(path),
		config.WithEnvPrefix(envPrefix),
		config.WithFlags(fs),
		config.WithFlagKey("logging.level", "logging_level"),
		config.WithFlagKey("whisper.url", "whisper_url"),
	)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
