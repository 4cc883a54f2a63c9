package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kbukum/fwaudio/logger"
)

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Input         []string `mapstructure:"input"`
	InputList     []string `mapstructure:"input_list"`
	ModelSize     string   `mapstructure:"model_size"`
	BeamSize      int      `mapstructure:"beam_size"`
	Combine       bool     `mapstructure:"combine_segments"`
	Whisper       struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"whisper"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to production", func(t *testing.T) {
		cfg := ServiceConfig{Name: "fwaudio"}
		cfg.ApplyDefaults()
		if cfg.Environment != "production" {
			t.Errorf("expected 'production', got %q", cfg.Environment)
		}
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.ServiceName != "fwaudio" {
			t.Errorf("expected service name propagated to logging, got %q", cfg.Logging.ServiceName)
		}
		if cfg.Logging.Level != "warn" {
			t.Errorf("expected logging defaults applied, got level %q", cfg.Logging.Level)
		}
	})

	t.Run("development enables debug logging", func(t *testing.T) {
		cfg := ServiceConfig{Name: "fwaudio", Environment: "development"}
		cfg.ApplyDefaults()
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug level, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := logger.Config{Level: "info", Format: "json", Output: "stderr"}
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid production", ServiceConfig{Name: "svc", Environment: "production", Logging: valid}, false, ""},
		{"missing name", ServiceConfig{Environment: "production", Logging: valid}, true, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa", Logging: valid}, true, "config.environment must be one of"},
		{"invalid logging", ServiceConfig{Name: "svc", Environment: "staging", Logging: logger.Config{Level: "loud", Format: "json", Output: "stderr"}}, true, "config.logging"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: fwaudio
environment: staging
model_size: large-v3
beam_size: 3
input:
  - a.wav
  - b.mp3
whisper:
  url: http://sidecar:8387
logging:
  level: info
`)

	var cfg testConfig
	if err := LoadConfig("fwaudio", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "missing.env"))); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "fwaudio" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.ModelSize != "large-v3" || cfg.BeamSize != 3 {
		t.Errorf("unexpected reader options %q/%d", cfg.ModelSize, cfg.BeamSize)
	}
	if len(cfg.Input) != 2 || cfg.Input[1] != "b.mp3" {
		t.Errorf("unexpected input %v", cfg.Input)
	}
	if cfg.Whisper.URL != "http://sidecar:8387" {
		t.Errorf("unexpected whisper url %q", cfg.Whisper.URL)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected logging level %q", cfg.Logging.Level)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg,
		WithConfigFile("/nonexistent/path.yml"),
		WithEnvFile("/nonexistent/.env"),
	)
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: [unterminated")

	var cfg testConfig
	if err := LoadConfig("fwaudio", &cfg, WithConfigFile(path), WithEnvFile("/nonexistent/.env")); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoadConfigEnvPrefix(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "model_size: base\nbeam_size: 5\n")

	t.Setenv("FWAUDIO_MODEL_SIZE", "medium")
	t.Setenv("FWAUDIO_WHISPER_URL", "http://env:1")
	t.Setenv("BEAM_SIZE", "9")

	var cfg testConfig
	err := LoadConfig("fwaudio", &cfg,
		WithConfigFile(path),
		WithEnvFile("/nonexistent/.env"),
		WithEnvPrefix("FWAUDIO"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ModelSize != "medium" {
		t.Errorf("expected env to override file, got %q", cfg.ModelSize)
	}
	if cfg.Whisper.URL != "http://env:1" {
		t.Errorf("expected nested env binding, got %q", cfg.Whisper.URL)
	}
	if cfg.BeamSize != 5 {
		t.Errorf("expected unprefixed env to be ignored, got %d", cfg.BeamSize)
	}
}

func TestLoadConfigEnvSharedPrefixKeys(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantInput []string
		wantList  []string
	}{
		{"input list only", map[string]string{"FWAUDIO_INPUT_LIST": "list.txt"}, nil, []string{"list.txt"}},
		{"input only", map[string]string{"FWAUDIO_INPUT": "a.wav,b.wav"}, []string{"a.wav", "b.wav"}, nil},
		{"both", map[string]string{"FWAUDIO_INPUT": "a.wav", "FWAUDIO_INPUT_LIST": "l1.txt,l2.txt"}, []string{"a.wav"}, []string{"l1.txt", "l2.txt"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			var cfg testConfig
			err := LoadConfig("fwaudio", &cfg,
				WithConfigFile("/nonexistent/config.yml"),
				WithEnvFile("/nonexistent/.env"),
				WithEnvPrefix("FWAUDIO"),
			)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if strings.Join(cfg.Input, ",") != strings.Join(tc.wantInput, ",") {
				t.Errorf("input = %v, want %v", cfg.Input, tc.wantInput)
			}
			if strings.Join(cfg.InputList, ",") != strings.Join(tc.wantList, ",") {
				t.Errorf("input_list = %v, want %v", cfg.InputList, tc.wantList)
			}
		})
	}
}

func TestKnownKeys(t *testing.T) {
	fs := pflag.NewFlagSet("fwaudio", pflag.ContinueOnError)
	fs.String("whisper_url", "", "")
	lc := LoaderConfig{Flags: fs}
	WithFlagKey("whisper.url", "whisper_url")(&lc)

	keys := knownKeys(viper.New(), &testConfig{}, lc)
	for _, k := range []string{"name", "logging.level", "input", "input_list", "whisper.url", "whisper_url"} {
		if !keys[k] {
			t.Errorf("expected %q in known keys", k)
		}
	}
	for _, k := range []string{"input.list", "whisper", "logging"} {
		if keys[k] {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "FWAUDIO_BEAM_SIZE=7\n")
	t.Cleanup(func() { os.Unsetenv("FWAUDIO_BEAM_SIZE") })

	var cfg testConfig
	err := LoadConfig("fwaudio", &cfg,
		WithConfigFile("/nonexistent/config.yml"),
		WithEnvFile(envPath),
		WithEnvPrefix("FWAUDIO_"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BeamSize != 7 {
		t.Errorf("expected beam size from .env, got %d", cfg.BeamSize)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "model_size: small\nbeam_size: 2\n")

	fs := pflag.NewFlagSet("fwaudio", pflag.ContinueOnError)
	fs.StringArrayP("input", "i", nil, "")
	fs.StringP("model_size", "m", "base", "")
	fs.IntP("beam_size", "b", 5, "")
	fs.BoolP("combine_segments", "1", false, "")
	fs.StringP("logging_level", "l", "", "")
	if err := fs.Parse([]string{"-i", "x.wav", "-i", "y,z.wav", "-b", "8", "-1", "-l", "error"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	t.Setenv("FWAUDIO_BEAM_SIZE", "4")

	var cfg testConfig
	err := LoadConfig("fwaudio", &cfg,
		WithConfigFile(path),
		WithEnvFile("/nonexistent/.env"),
		WithEnvPrefix("FWAUDIO"),
		WithFlags(fs),
		WithFlagKey("logging.level", "logging_level"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.BeamSize != 8 {
		t.Errorf("expected set flag to win over env, got %d", cfg.BeamSize)
	}
	if cfg.ModelSize != "small" {
		t.Errorf("expected file to win over flag default, got %q", cfg.ModelSize)
	}
	if !cfg.Combine {
		t.Error("expected combine_segments from flag")
	}
	if len(cfg.Input) != 2 || cfg.Input[1] != "y,z.wav" {
		t.Errorf("expected repeated input flags kept verbatim, got %v", cfg.Input)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected nested flag key binding, got %q", cfg.Logging.Level)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/fwaudio/config.yml": true,
		".env":                     true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("fwaudio", LoaderConfig{})
	if files.ConfigFile != "./cmd/fwaudio/config.yml" {
		t.Errorf("expected config file at ./cmd/fwaudio/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != ".env" {
		t.Errorf("expected .env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("fwaudio", LoaderConfig{ConfigFile: "/etc/fw.yml"})
	if explicit.ConfigFile != "/etc/fw.yml" {
		t.Errorf("expected explicit config file, got %q", explicit.ConfigFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("LOGGING_LEVEL")
	want := map[string]bool{"logging_level": true, "logging.level": true}
	for _, v := range got {
		delete(want, v)
	}
	if len(want) != 0 {
		t.Errorf("missing variants %v in %v", want, got)
	}

	if got := generateEnvKeyVariants("DEVICE"); len(got) != 1 || got[0] != "device" {
		t.Errorf("unexpected single-part variants %v", got)
	}
}
