// Package config loads fwaudio configuration.
//
// It uses Viper to merge, from lowest to highest precedence, flag defaults,
// a config.yml file, a .env file, prefixed environment variables and
// explicitly set command-line flags.
//
// # Usage
//
//	var cfg appConfig
//	err := config.LoadConfig("fwaudio", &cfg,
//	    config.WithEnvPrefix("FWAUDIO"),
//	    config.WithFlags(flags),
//	)
//
// Environment variables use underscore-separated paths after the prefix
// (e.g., FWAUDIO_BEAM_SIZE, FWAUDIO_LOGGING_LEVEL).
package config
