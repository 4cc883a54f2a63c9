package pipeline

import "context"

// Buffer adds a buffered channel between pipeline stages.
// This decouples the production rate from the consumption rate.
func Buffer[T any](p *Pipeline[T], size int) *Pipeline[T] {
	if size <= 0 {
		size = 1
	}
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			source := p.create(ctx)
			bufCtx, cancel := context.WithCancel(ctx)
			ch := make(chan result[T], size)

			go func() {
				defer close(ch)
				for {
					val, ok, err := source.Next(bufCtx)
					if err != nil {
						select {
						case ch <- result[T]{err: err}:
						case <-bufCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					select {
					case ch <- result[T]{val: val, ok: true}:
					case <-bufCtx.Done():
						return
					}
				}
			}()

			return &channelIter[T]{
				ch: ch,
				closer: func() error {
					cancel()
					// source must not be closed while the producer is inside Next.
					for range ch {
					}
					return source.Close()
				},
			}
		},
	}
}
