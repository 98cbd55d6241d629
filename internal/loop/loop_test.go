package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsInPostOrder(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(l.Stop)

	if err := l.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("out of order execution: %v", got)
		}
	}
	if len(got) != 5 {
		t.Errorf("expected 5 closures to run, got %d", len(got))
	}
}

func TestLoopPostAfterStop(t *testing.T) {
	l := New(1)
	l.Stop()
	l.Stop()

	if l.Post(func() {}) {
		t.Error("Post should fail on a stopped loop")
	}
	if l.Post(nil) {
		t.Error("Post should reject nil closures")
	}
}

func TestLoopDo(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Run(ctx)
	}()

	ran := false
	if err := l.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected closure to run before Do returned")
	}

	l.Stop()
	wg.Wait()

	if err := l.Do(ctx, func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestLoopContextCancel(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	select {
	case <-l.Stopped():
	default:
		t.Error("expected loop to be stopped after context cancellation")
	}
}
