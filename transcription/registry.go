package transcription

import (
	"time"

	"github.com/kbukum/fwaudio/provider"
)

// NewRegistry creates a new provider registry for transcription providers.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}

// String returns cfg[key] when it is a non-empty string, else def.
func String(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns cfg[key] when it is a positive int, else def.
func Int(cfg map[string]any, key string, def int) int {
	if v, ok := cfg[key].(int); ok && v > 0 {
		return v
	}
	return def
}

// Duration returns cfg[key] when it is a positive time.Duration, else def.
func Duration(cfg map[string]any, key string, def time.Duration) time.Duration {
	if v, ok := cfg[key].(time.Duration); ok && v > 0 {
		return v
	}
	return def
}
