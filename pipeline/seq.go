package pipeline

import (
	"context"
	"iter"
)

// FromSeq creates a pipeline from a range-over-func sequence. Each run pulls
// a fresh iterator from seq.
func FromSeq[T any](seq iter.Seq[T]) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(_ context.Context) Iterator[T] {
			next, stop := iter.Pull(seq)
			return &seqIter[T]{next: next, stop: stop}
		},
	}
}

type seqIter[T any] struct {
	next func() (T, bool)
	stop func()
}

func (it *seqIter[T]) Next(ctx context.Context) (T, bool, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	v, ok := it.next()
	return v, ok, nil
}

func (it *seqIter[T]) Close() error {
	it.stop()
	return nil
}
