package util

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Map calls fn once for every index in [0, n) using a fixed pool of at most
// workers goroutines, and returns the results ordered by index.
//
// Each call to fn must be self-contained: the only shared state is the result
// slice, and it is written solely by the calling goroutine as results arrive.
// The first error returned by fn cancels the context given to the other
// calls, stops any further dispatching, and is returned. In that case the
// results computed so far are discarded.
func Map[R any](ctx context.Context, workers, n int, fn func(ctx context.Context, i int) (R, error)) ([]R, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if n == 0 {
		return []R{}, nil
	}

	type result struct {
		i int
		r R
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	out := make(chan result)

	// feed jobs
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := fn(ctx, i)
				if err != nil {
					return err
				}
				select {
				case out <- result{i: i, r: r}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	// close out once every worker has exited so the loop below terminates
	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]R, n)
	for res := range out {
		results[res.i] = res.r
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
