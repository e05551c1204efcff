package worker

import (
	"context"
	"fmt"
)

// IndexedResult carries the position of the input that produced it.
type IndexedResult[T any] struct {
	Index int
	Value T
	Err   error
}

// GetError returns the error from the job
func (r *IndexedResult[T]) GetError() error {
	return r.Err
}

type indexedJob[T any] struct {
	index int
	fn    func(ctx context.Context, i int) (T, error)
}

func (j *indexedJob[T]) Execute(ctx context.Context) Result {
	v, err := j.fn(ctx, j.index)
	return &IndexedResult[T]{Index: j.index, Value: v, Err: err}
}

// Map evaluates fn for every i in [0, n) on a pool of workers and returns
// the values in index order. The first job error is returned after all jobs
// finish; a cancelled context stops scheduling and returns ctx.Err(). The
// context handed to fn is cancelled once Map returns.
func Map[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}
	if workers > n {
		workers = n
	}

	pool := NewPoolContext(ctx, workers)
	pool.Start()
	defer pool.Shutdown()

	go func() {
		defer pool.CloseQueue()
		for i := 0; i < n; i++ {
			if !pool.Submit(&indexedJob[T]{index: i, fn: fn}) {
				return
			}
		}
	}()

	var firstErr error
	firstIdx := n
	received := 0
	for res := range pool.Results() {
		r := res.(*IndexedResult[T])
		received++
		if r.Err != nil && r.Index < firstIdx {
			firstIdx, firstErr = r.Index, r.Err
		}
		out[r.Index] = r.Value
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, fmt.Errorf("job %d: %w", firstIdx, firstErr)
	}
	if received != n {
		return nil, fmt.Errorf("worker pool returned %d of %d results", received, n)
	}
	return out, nil
}
