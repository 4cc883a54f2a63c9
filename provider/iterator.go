package provider

import "context"

// Iterator provides pull-based sequential access to a stream of values.
// The consumer calls Next() to retrieve values one at a time.
// Close must be called when done to release resources.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// SliceIterator iterates over a fixed slice once.
type SliceIterator[T any] struct {
	items []T
	index int
}

// NewSliceIterator returns an Iterator over items.
func NewSliceIterator[T any](items []T) *SliceIterator[T] {
	return &SliceIterator[T]{items: items}
}

// Next returns the next item, or (zero, false, nil) after the last one.
func (it *SliceIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if it.index >= len(it.items) {
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

// Close drops the remaining items.
func (it *SliceIterator[T]) Close() error {
	it.index = len(it.items)
	return nil
}

// Collect drains an iterator into a slice and closes it.
func Collect[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	defer it.Close()
	var out []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
