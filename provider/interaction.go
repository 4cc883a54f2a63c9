package provider

import "context"

// RequestResponse represents a provider that takes one input and returns one output.
// This covers HTTP calls, subprocess exec and local model invocations.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Sink represents a provider that accepts input with no meaningful output.
// This covers record writers and other terminal consumers.
type Sink[I any] interface {
	Provider
	Send(ctx context.Context, input I) error
}
