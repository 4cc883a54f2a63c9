// Package whisper implements transcription.Provider against a faster-whisper
// HTTP sidecar exposing POST /transcribe (multipart) and GET /health.
package whisper
