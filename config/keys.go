package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// knownKeys returns the config keys an environment variable may be bound to:
// the leaf mapstructure keys of cfg, keys already read from the config file,
// and every bound flag key.
func knownKeys(v *viper.Viper, cfg interface{}, lc LoaderConfig) map[string]bool {
	keys := make(map[string]bool)
	if t := reflect.TypeOf(cfg); t != nil {
		collectKeys(t, "", keys)
	}
	for _, k := range v.AllKeys() {
		keys[k] = true
	}
	if lc.Flags != nil {
		lc.Flags.VisitAll(func(f *pflag.Flag) { keys[f.Name] = true })
	}
	for k := range lc.FlagKeys {
		keys[k] = true
	}
	return keys
}

var timeType = reflect.TypeOf(time.Time{})

func collectKeys(t reflect.Type, prefix string, keys map[string]bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		if prefix != "" {
			keys[strings.TrimSuffix(prefix, ".")] = true
		}
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if strings.Contains(opts, "squash") {
			collectKeys(f.Type, prefix, keys)
			continue
		}
		if name == "" {
			name = f.Name
		}
		collectKeys(f.Type, prefix+strings.ToLower(name)+".", keys)
	}
}
