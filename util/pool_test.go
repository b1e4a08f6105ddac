package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMapOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, workers := range []int{0, 1, 3, 8, 100} {
		result, err := Map(context.Background(), workers, 50, func(ctx context.Context, i int) (int, error) {
			// make later items finish first
			time.Sleep(time.Duration(50-i) * 10 * time.Microsecond)
			return i * i, nil
		})
		if err != nil {
			t.Fatalf("workers=%d: received %s", workers, err)
		}
		if len(result) != 50 {
			t.Fatalf("workers=%d: received %d results, expected 50", workers, len(result))
		}
		for i, v := range result {
			if v != i*i {
				t.Errorf("workers=%d: result[%d] = %d, expected %d", workers, i, v, i*i)
			}
		}
	}
}

func TestMapEmpty(t *testing.T) {
	result, err := Map(context.Background(), 4, 0, func(ctx context.Context, i int) (string, error) {
		t.Error("fn called for empty input")
		return "", nil
	})
	if err != nil || len(result) != 0 {
		t.Errorf("Received (%v, %v), expected empty result", result, err)
	}
}

func TestMapBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	var active, most int64
	_, err := Map(context.Background(), 4, 40, func(ctx context.Context, i int) (struct{}, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			m := atomic.LoadInt64(&most)
			if n <= m || atomic.CompareAndSwapInt64(&most, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&active, -1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if most > 4 {
		t.Errorf("Received %d concurrent calls, expected at most 4", most)
	}
}

func TestMapError(t *testing.T) {
	defer goleak.VerifyNone(t)

	errBoom := errors.New("boom")
	var calls int64
	result, err := Map(context.Background(), 2, 1000, func(ctx context.Context, i int) (int, error) {
		atomic.AddInt64(&calls, 1)
		if i == 3 {
			return 0, errBoom
		}
		time.Sleep(100 * time.Microsecond)
		return i, nil
	})
	if err != errBoom {
		t.Errorf("Received error %v, expected %v", err, errBoom)
	}
	if result != nil {
		t.Errorf("Received partial results %v, expected nil", result)
	}
	if calls >= 1000 {
		t.Errorf("Received %d calls, expected dispatching to stop early", calls)
	}
}

func TestMapCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Map(ctx, 2, 10, func(ctx context.Context, i int) (int, error) {
		return i, nil
	})
	if err != context.Canceled {
		t.Errorf("Received error %v, expected %v", err, context.Canceled)
	}
}
