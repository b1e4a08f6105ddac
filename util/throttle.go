package util

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// A Throttle limits the combined rate at which some number of readers may
// consume bytes. Credits are added to a pool on every tick, and reading
// removes them. While the pool is empty readers wait.
//
// A Throttle may be shared by any number of goroutines.
type Throttle struct {
	c    chan struct{} // receives while credits are positive
	stop chan struct{} // closed by Stop
	once sync.Once

	m       sync.Mutex // protects credits
	credits int64
}

// throttleInterval is the time between refills. Each refill is capped at one
// interval's worth, so an idle Throttle does not build up a large burst.
const throttleInterval = 100 * time.Millisecond

// ErrStopped means a read failed because its Throttle was stopped.
var ErrStopped = errors.New("throttle stopped")

// NewThrottle starts a Throttle allowing bytesPerSecond on average. Stop must
// be called to release its goroutine.
func NewThrottle(bytesPerSecond float64) *Throttle {
	amount := int64(bytesPerSecond * throttleInterval.Seconds())
	if amount < 1 {
		amount = 1
	}
	t := &Throttle{
		c:       make(chan struct{}),
		stop:    make(chan struct{}),
		credits: amount,
	}
	go t.refill(amount)
	return t
}

// Use removes count credits. The balance may go negative.
func (t *Throttle) Use(count int64) {
	t.m.Lock()
	t.credits -= count
	t.m.Unlock()
}

// Wait blocks until there are credits available, the context is done, or
// the Throttle is stopped.
func (t *Throttle) Wait(ctx context.Context) error {
	select {
	case _, ok := <-t.c:
		if !ok {
			return ErrStopped
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the refill goroutine. Any waiting or later reads fail with
// ErrStopped. It is safe to call Stop more than once.
func (t *Throttle) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (t *Throttle) refill(amount int64) {
	tick := time.NewTicker(throttleInterval)
	defer tick.Stop()
	for {
		var signal chan struct{}
		t.m.Lock()
		if t.credits > 0 {
			signal = t.c
		}
		t.m.Unlock()
		select {
		case <-tick.C:
			t.m.Lock()
			t.credits += amount
			if t.credits > amount {
				t.credits = amount
			}
			t.m.Unlock()
		case signal <- struct{}{}:
		case <-t.stop:
			close(t.c)
			return
		}
	}
}

// Reader returns an io.Reader whose reads are governed by this Throttle. A
// throttled read returns the context's error if it is cancelled while
// waiting.
func (t *Throttle) Reader(ctx context.Context, r io.Reader) io.Reader {
	return &throttledReader{ctx: ctx, r: r, t: t}
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	t   *Throttle
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	if err := tr.t.Wait(tr.ctx); err != nil {
		return 0, err
	}
	n, err := tr.r.Read(p)
	tr.t.Use(int64(n))
	return n, err
}
