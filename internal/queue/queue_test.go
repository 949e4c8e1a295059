package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrencyNeverExceedsLimit(t *testing.T) {
	q := New(2)
	q.Start()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&maxActive)
					if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			}, "r1")
		}()
	}
	wg.Wait()

	if maxActive > 2 {
		t.Fatalf("maxActive = %d, want <= 2", maxActive)
	}
}

func TestStartsPaused(t *testing.T) {
	q := New(1)
	started := make(chan struct{}, 1)
	go q.Enqueue(func() error { started <- struct{}{}; return nil }, "r1")

	select {
	case <-started:
		t.Fatal("task ran before Start was called")
	case <-time.After(30 * time.Millisecond):
	}

	q.Start()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("task never ran after Start")
	}
}

func TestRemoveByRunnerDropsOnlyThatRunnersPending(t *testing.T) {
	q := New(1) // concurrency 1, so subsequent enqueues stay pending
	q.Start()

	block := make(chan struct{})
	go q.Enqueue(func() error { <-block; return nil }, "busy")

	time.Sleep(20 * time.Millisecond) // let the blocking task become active

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() { doneA <- q.Enqueue(func() error { return nil }, "A") }()
	go func() { doneB <- q.Enqueue(func() error { return nil }, "B") }()
	time.Sleep(20 * time.Millisecond)

	removed := q.RemoveByRunner("A")
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	close(block)

	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("runner B's task never completed")
	}

	select {
	case <-doneA:
		t.Fatal("runner A's task completion must be orphaned, not delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClearRejectsPendingNotRunning(t *testing.T) {
	q := New(1)
	q.Start()

	block := make(chan struct{})
	go q.Enqueue(func() error { <-block; return nil }, "busy")
	time.Sleep(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(func() error { return nil }, "r1") }()
	time.Sleep(20 * time.Millisecond)

	removed := q.Clear()
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	select {
	case err := <-done:
		if err != ErrCleared {
			t.Fatalf("err = %v, want ErrCleared", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cleared task's completion was never delivered")
	}

	close(block)
}

func TestLimitClampsToOne(t *testing.T) {
	q := New(0)
	if q.limit != 1 {
		t.Fatalf("limit = %d, want 1", q.limit)
	}
}
