package fwaudio

import (
	"github.com/kbukum/fwaudio/provider"
	"github.com/kbukum/fwaudio/transcription"
	"github.com/kbukum/fwaudio/transcription/fasterwhisper"
	"github.com/kbukum/fwaudio/transcription/whisper"
)

// NewRegistry returns a transcription registry with the built-in backends.
func NewRegistry() *provider.Registry[transcription.Provider] {
	reg := transcription.NewRegistry()
	reg.RegisterFactory(fasterwhisper.ProviderName, fasterwhisper.Factory())
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
	return reg
}
