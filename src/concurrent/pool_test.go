package concurrent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	wp := NewWorkerPool(3)
	ctx := context.Background()

	var active, peak int32
	done := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		go func() {
			_ = wp.Do(ctx, func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Fatalf("concurrency exceeded the bound: peak %d", p)
	}
}

func TestWorkerPoolHonorsContext(t *testing.T) {
	wp := NewWorkerPool(1)

	release := make(chan struct{})
	go func() {
		_ = wp.Do(context.Background(), func() error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond) // let the holder take the slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := wp.Do(ctx, func() error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while pool is full, got %v", err)
	}
	close(release)
}

func TestParallelMapPreservesOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	results, errs := ParallelMap(context.Background(), items, func(v int) (string, error) {
		if v%10 == 7 {
			return "", fmt.Errorf("item %d failed", v)
		}
		return fmt.Sprintf("v%d", v), nil
	}, 4)

	if len(results) != 50 || len(errs) != 50 {
		t.Fatalf("result lengths wrong: %d, %d", len(results), len(errs))
	}
	for i := range items {
		if i%10 == 7 {
			if errs[i] == nil {
				t.Fatalf("expected error at %d", i)
			}
			continue
		}
		if errs[i] != nil {
			t.Fatalf("unexpected error at %d: %v", i, errs[i])
		}
		if results[i] != fmt.Sprintf("v%d", i) {
			t.Fatalf("result %d out of order: %q", i, results[i])
		}
	}
}

func TestParallelMapEmptyInput(t *testing.T) {
	results, errs := ParallelMap(context.Background(), nil, func(int) (int, error) { return 0, nil }, 4)
	if results != nil || errs != nil {
		t.Fatalf("empty input should return nils, got %v %v", results, errs)
	}
}
