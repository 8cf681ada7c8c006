// Package workerpool runs a fixed number of goroutines pulling reads from
// a shared, mutex-guarded source and writing formatted records through a
// shared, mutex-guarded sink, per spec.md §4.8/§5 (C8). It replaces the
// original tool's raw, fixed-size thread array with a pool that guarantees
// every goroutine is joined on every exit path, including an error from
// any one worker.
package workerpool

import (
	"context"
	"runtime"
	"sync"
)

// Pool runs up to N workers concurrently. N is clamped to hardware
// parallelism (spec.md §5's scheduling rule).
type Pool struct {
	n int
}

// New returns a Pool sized to requested workers, clamped to
// [1, runtime.NumCPU()].
func New(requested int) *Pool {
	n := requested
	if n < 1 {
		n = 1
	}
	if max := runtime.NumCPU(); n > max {
		n = max
	}
	return &Pool{n: n}
}

// Size reports the clamped worker count.
func (p *Pool) Size() int { return p.n }

// Next pulls the next unit of work under the caller's own input-cursor
// lock. It returns ok=false once the source is exhausted.
type Next[T any] func() (item T, ok bool, err error)

// Process turns one work item into zero or more output bytes. A nil,
// nil result means the item was intentionally skipped (e.g. a malformed
// read, which the caller counts itself per spec.md §4.8's failure
// semantics) and nothing should be written.
type Process[T any] func(item T) ([]byte, error)

// Write appends one formatted record under the caller's own output-sink
// lock.
type Write func([]byte) error

// Run starts p.Size() workers, each looping: pull via next, transform via
// process, append via write, until next reports exhaustion, ctx is
// cancelled, or any worker hits an error. Run blocks until every worker
// has exited and returns the first error encountered, if any.
func Run[T any](ctx context.Context, p *Pool, next Next[T], process Process[T], write Write) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	wg.Add(p.n)
	for w := 0; w < p.n; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				item, ok, err := next()
				if err != nil {
					recordErr(err)
					return
				}
				if !ok {
					return
				}

				out, err := process(item)
				if err != nil {
					recordErr(err)
					return
				}
				if out == nil {
					continue
				}
				if err := write(out); err != nil {
					recordErr(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}
