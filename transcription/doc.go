// Package transcription defines the provider interface and common types
// for interacting with speech-to-text backends.
//
// Backends register factories in a provider.Registry and are selected by
// name at runtime.
//
// # Backends
//
//   - transcription/fasterwhisper: local faster-whisper through a Python worker process
//   - transcription/whisper: faster-whisper HTTP sidecar
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.RegisterFactory(fasterwhisper.ProviderName, fasterwhisper.Factory())
//	p, err := reg.Create(fasterwhisper.ProviderName, map[string]any{
//	    transcription.KeyModelSize: "base",
//	})
//	resp, err := p.Transcribe(ctx, transcription.TranscriptionRequest{AudioPath: path, BeamSize: 5})
package transcription
