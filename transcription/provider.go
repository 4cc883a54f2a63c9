package transcription

import (
	"context"

	"github.com/kbukum/fwaudio/provider"
)

// Provider is the interface that transcription backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Transcribe sends audio for transcription and returns the result.
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
}

// AsRequestResponse exposes p as a provider.RequestResponse so it can be
// wrapped with provider middleware.
func AsRequestResponse(p Provider) provider.RequestResponse[TranscriptionRequest, *TranscriptionResponse] {
	return &requestResponse{p: p}
}

type requestResponse struct {
	p Provider
}

func (r *requestResponse) Name() string                         { return r.p.Name() }
func (r *requestResponse) IsAvailable(ctx context.Context) bool { return r.p.IsAvailable(ctx) }

func (r *requestResponse) Execute(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	return r.p.Transcribe(ctx, req)
}

// Unwrap returns the wrapped transcription provider.
func (r *requestResponse) Unwrap() Provider { return r.p }
