package pipeline

import "context"

// Map transforms each value using fn.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: p.create(ctx), fn: fn}
		},
	}
}

// FlatMap transforms each value into an iterator and flattens the results.
func FlatMap[I, O any](p *Pipeline[I], fn func(context.Context, I) (Iterator[O], error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &flatMapIter[I, O]{source: p.create(ctx), fn: fn}
		},
	}
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](p *Pipeline[T], fn func(T) bool) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &filterIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// Tap calls fn as a side-effect for each value, then passes the value through unchanged.
// Use for logging, metrics, or mid-pipeline publishing.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &tapIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type flatMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) (Iterator[O], error)
	current Iterator[O]
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	for {
		if it.current != nil {
			val, ok, err := it.current.Next(ctx)
			if err != nil {
				var zero O
				return zero, false, err
			}
			if ok {
				return val, true, nil
			}
			_ = it.current.Close()
			it.current = nil
		}
		in, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			var zero O
			return zero, false, err
		}
		inner, err := it.fn(ctx, in)
		if err != nil {
			var zero O
			return zero, false, err
		}
		it.current = inner
	}
}

func (it *flatMapIter[I, O]) Close() error {
	if it.current != nil {
		_ = it.current.Close()
	}
	return it.source.Close()
}

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.fn(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }
