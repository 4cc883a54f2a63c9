// Package logger provides structured logging for fwaudio using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields. Log output defaults to
// stderr so that records written to stdout stay machine-readable.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("fwaudio")
//	log.Info("reading from", logger.Fields("file", path))
package logger
