package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver handles finding and resolving config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles finds config and env files for a service.
// Returns explicit paths if provided, otherwise searches for them.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}

	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.findFirst(configSearchPaths(serviceName))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.findFirst(envSearchPaths(serviceName))
	}

	return resolved
}

func (cr *Resolver) findFirst(paths []string) string {
	for _, path := range paths {
		if cr.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// configSearchPaths lists config.yml locations in priority order.
func configSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../../cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"./config.yml",
	}
}

// envSearchPaths lists .env locations in priority order.
func envSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/.env", serviceName),
		fmt.Sprintf(".env.%s", serviceName),
		".env",
	}
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	EnvPrefix  string // Only variables with this prefix are bound (optional)
	Flags      *pflag.FlagSet
	FlagKeys   map[string]string // config key -> flag name, for nested keys
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix restricts environment binding to PREFIX_* variables. The
// prefix is stripped before the key variants are generated.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = strings.ToUpper(strings.TrimSuffix(prefix, "_")) }
}

// WithFlags binds a parsed flag set. Flags are matched to config keys by name;
// explicitly set flags override file and environment values, unset flags
// only supply their defaults.
func WithFlags(fs *pflag.FlagSet) LoaderOption {
	return func(lc *LoaderConfig) { lc.Flags = fs }
}

// WithFlagKey binds the named flag to a nested config key such as "logging.level".
func WithFlagKey(key, flagName string) LoaderOption {
	return func(lc *LoaderConfig) {
		if lc.FlagKeys == nil {
			lc.FlagKeys = make(map[string]string)
		}
		lc.FlagKeys[key] = flagName
	}
}

// LoadConfig loads configuration for a service into the provided cfg struct.
// Precedence, highest first: set flags, environment, .env, config.yml, flag defaults.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	return loadFromResolvedFiles(serviceName, cfg, files, lc)
}

// loadFromResolvedFiles loads configuration from specific files.
func loadFromResolvedFiles(serviceName string, cfg interface{}, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()

	// 1. Load YAML config first (base configuration)
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", files.ConfigFile, err)
		}
	}

	// 2. Load .env into the process environment
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("failed to load .env file %s: %w", files.EnvFile, err)
		}
	}

	// 3. Environment overrides the file
	bindEnvVars(v, lc.EnvPrefix, os.Environ(), knownKeys(v, cfg, lc))

	// 4. Flags: set flags win, defaults fill gaps
	if err := bindFlags(v, lc); err != nil {
		return err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}

	return nil
}

// bindFlags registers flags with viper. Changed flags are applied with Set so
// they take precedence over the environment values bound by bindEnvVars.
func bindFlags(v *viper.Viper, lc LoaderConfig) error {
	if lc.Flags == nil {
		return nil
	}
	nested := make(map[string]string, len(lc.FlagKeys))
	for key, name := range lc.FlagKeys {
		nested[name] = key
	}

	var bindErr error
	lc.Flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if k, ok := nested[f.Name]; ok {
			key = k
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
			return
		}
		if f.Changed {
			v.Set(key, flagValue(f))
		}
	})
	return bindErr
}

// flagValue returns a typed value for slice flags so viper decodes them as lists.
func flagValue(f *pflag.Flag) interface{} {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return sv.GetSlice()
	}
	return f.Value.String()
}

// bindEnvVars sets every matching environment variable on viper under each
// key variant that names a known key. Unknown variants are skipped so that
// INPUT_LIST never turns the input key into a map.
func bindEnvVars(v *viper.Viper, prefix string, environ []string, known map[string]bool) {
	for _, env := range environ {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}

		key := pair[0]
		if prefix != "" {
			if !strings.HasPrefix(key, prefix+"_") {
				continue
			}
			key = strings.TrimPrefix(key, prefix+"_")
		}

		for _, variant := range generateEnvKeyVariants(key) {
			if len(known) == 0 || known[variant] {
				v.Set(variant, pair[1])
			}
		}
	}
}

// generateEnvKeyVariants creates all possible key variants for environment variable binding.
// Examples:
//
//	BEAM_SIZE -> [beam_size, beam.size]
//	LOGGING_LEVEL -> [logging_level, logging.level]
//	WHISPER_COMPUTE_TYPE -> [whisper_compute_type, whisper.compute.type, whisper.compute_type, whisper_compute.type]
func generateEnvKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")

	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}

	// Progressive nesting: a.b_c_d, a_b.c_d, ...
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}

	if len(parts) >= 3 {
		prefix := strings.Join(parts[:len(parts)-1], "_")
		variants = append(variants, prefix+"."+parts[len(parts)-1])
	}

	return removeDuplicates(variants)
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
