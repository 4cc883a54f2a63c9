// Package errors provides the structured error type used across fwaudio.
// Errors carry a machine-readable code, retryable detection, details for
// logging, and a mapping to process exit codes for the command line.
package errors
