package tasks

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerExecutes(t *testing.T) {
	r := NewRunner(2, 8)
	var ran int32
	for i := 0; i < 5; i++ {
		if !r.Submit("count", func() error {
			atomic.AddInt32(&ran, 1)
			return nil
		}) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	r.Close()
	if got := atomic.LoadInt32(&ran); got != 5 {
		t.Fatalf("ran %d tasks, want 5", got)
	}
}

func TestRunnerOverflowDrops(t *testing.T) {
	r := NewRunner(1, 1)
	block := make(chan struct{})
	// occupy the single worker, then fill the queue
	r.Submit("block", func() error { <-block; return nil })

	// wait for the worker to pick the blocking task up
	deadline := time.Now().Add(time.Second)
	for {
		if r.Submit("fill", func() error { return nil }) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue never accepted the fill task")
		}
	}

	if r.Submit("overflow", func() error { return nil }) {
		t.Fatalf("submit on full queue must be rejected")
	}
	if r.Dropped() == 0 {
		t.Fatalf("dropped counter not incremented")
	}
	close(block)
	r.Close()
}

func TestRunnerSubmitCloseRace(t *testing.T) {
	// submissions racing Close must either land or be rejected, never
	// panic on a closed channel
	r := NewRunner(2, 4)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if !r.Submit("race", func() error { return nil }) {
					return
				}
			}
		}()
	}
	r.Close()
	wg.Wait()
	if r.Submit("late", func() error { return nil }) {
		t.Fatalf("closed runner accepted a submission")
	}
}

func TestRunnerClosedRejects(t *testing.T) {
	r := NewRunner(1, 4)
	r.Close()
	if r.Submit("late", func() error { return nil }) {
		t.Fatalf("closed runner must reject submissions")
	}
	// double close is a no-op
	r.Close()
}
