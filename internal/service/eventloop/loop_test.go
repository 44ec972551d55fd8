package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l, cancel
}

func TestInline_RunsImmediately(t *testing.T) {
	ran := false
	Inline{}.Post(func() { ran = true })
	if !ran {
		t.Error("expected Inline.Post to run fn synchronously")
	}
}

func TestLoop_PreservesOrder(t *testing.T) {
	l, _ := startLoop(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("expected 100 functions to run, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected FIFO order, got %d at position %d", v, i)
		}
	}
}

func TestLoop_PostFromInsideLoopDoesNotBlock(t *testing.T) {
	l, _ := startLoop(t)

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested Post never ran")
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	l, _ := startLoop(t)

	l.Post(func() { panic("boom") })

	ran := false
	if err := l.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected loop to keep running after a panic")
	}
}

func TestLoop_DoAfterClose(t *testing.T) {
	l, _ := startLoop(t)
	l.Close()

	if err := l.Do(context.Background(), func() {}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestLoop_RunReturnsOnCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if l.Running() {
		t.Error("expected Running to be false after Run returned")
	}
}
