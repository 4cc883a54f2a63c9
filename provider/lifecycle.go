package provider

import "context"

// Initializable is optionally implemented by providers that need setup
// before handling requests (e.g., load a model, start a worker process).
// Callers run Init once before the first request.
type Initializable interface {
	Init(ctx context.Context) error
}

// Closeable is optionally implemented by providers that hold resources
// requiring explicit cleanup (e.g., a worker process or an HTTP transport).
type Closeable interface {
	Close(ctx context.Context) error
}

// InitIfNeeded calls Init when p implements Initializable.
func InitIfNeeded(ctx context.Context, p any) error {
	if i, ok := p.(Initializable); ok {
		return i.Init(ctx)
	}
	return nil
}

// CloseIfNeeded calls Close when p implements Closeable.
func CloseIfNeeded(ctx context.Context, p any) error {
	if c, ok := p.(Closeable); ok {
		return c.Close(ctx)
	}
	return nil
}
