package portal

import (
	"context"
	"sync"
)

// Loader guards a view's fetches against out-of-order completion: a fetch
// triggered by newer state supersedes any in-flight fetch, whose context
// is canceled and whose late result is discarded instead of overwriting
// newer state. One Loader per view.
type Loader struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Go starts fetch under a fresh generation, superseding any in-flight
// fetch. deliver runs only if the fetch is still current when it
// completes; superseded fetches deliver nothing.
func (l *Loader) Go(ctx context.Context, fetch func(context.Context) (interface{}, error), deliver func(interface{}, error)) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	fctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer cancel()
		res, err := fetch(fctx)

		// deliver outside the lock so it may start the next fetch
		l.mu.Lock()
		current := gen == l.gen
		l.mu.Unlock()
		if !current {
			return // superseded
		}
		deliver(res, err)
	}()
}

// Wait blocks until all started fetches have completed or been discarded.
func (l *Loader) Wait() {
	l.wg.Wait()
}
