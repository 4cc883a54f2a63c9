// Package provider implements a small generic provider framework for
// swappable transcription backends.
//
// It provides a registry for managing provider implementations with
// factory-based instantiation and availability checking.
//
// Interaction patterns:
//   - RequestResponse[I, O]: one input → one output (HTTP sidecar, worker process)
//   - Sink[I]: one input → ack (record writers)
//
// Pull-based iteration:
//   - Iterator[T]: Next/Close cursor, the shape every reader result stream takes
//
// Opt-in lifecycle:
//   - Initializable: providers that need setup (load a model, start a worker)
//   - Closeable: providers that hold resources (worker processes)
//
// # Middleware
//
// Middleware[I, O] is a function that wraps a RequestResponse provider.
// Use Chain to compose multiple middlewares:
//
//	wrapped := provider.Chain(
//	    provider.WithLogging[In, Out](log),
//	    provider.WithMetrics[In, Out](metrics),
//	    provider.WithTracing[In, Out]("fwaudio"),
//	)(rawProvider)
//
// # Usage
//
//	reg := provider.NewRegistry[MyProvider]()
//	reg.RegisterFactory("default", myFactory)
//	p, err := reg.Create("default", cfg)
package provider
