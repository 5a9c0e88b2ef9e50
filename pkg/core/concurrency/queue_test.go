package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fluxorio/pollexec/pkg/future"
)

func newTestTask(name string) *Task {
	return NewTask(name, future.Do(func() {}), false)
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue("test")
	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		if err := q.PushBack(newTestTask(n)); err != nil {
			t.Fatalf("PushBack(%s) error = %v", n, err)
		}
	}
	if q.Len() != len(names) {
		t.Errorf("Len() = %d, want %d", q.Len(), len(names))
	}

	for _, want := range names {
		got, err := q.PopFront(context.Background())
		if err != nil {
			t.Fatalf("PopFront() error = %v", err)
		}
		if got.Name() != want {
			t.Errorf("PopFront() = %s, want %s", got.Name(), want)
		}
	}
}

func TestQueue_TryPopFrontEmpty(t *testing.T) {
	q := NewQueue("test")
	task, ok, err := q.TryPopFront()
	if task != nil || ok || err != nil {
		t.Errorf("TryPopFront() = (%v, %v, %v), want (nil, false, nil)", task, ok, err)
	}
}

func TestQueue_PopFrontParksUntilPush(t *testing.T) {
	q := NewQueue("test")
	got := make(chan *Task, 1)
	go func() {
		task, err := q.PopFront(context.Background())
		if err == nil {
			got <- task
		}
	}()

	select {
	case <-got:
		t.Fatal("PopFront() returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	if err := q.PushBack(newTestTask("late")); err != nil {
		t.Fatalf("PushBack() error = %v", err)
	}
	select {
	case task := <-got:
		if task.Name() != "late" {
			t.Errorf("PopFront() = %s, want late", task.Name())
		}
	case <-time.After(time.Second):
		t.Fatal("PopFront() did not wake after push")
	}
}

func TestQueue_PopFrontContext(t *testing.T) {
	q := NewQueue("test")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := q.PopFront(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("PopFront() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue("test")
	_ = q.PushBack(newTestTask("a"))
	_ = q.PushBack(newTestTask("b"))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Wait for the queue to be drained by Close.
			for q.Len() > 0 {
				time.Sleep(time.Millisecond)
			}
			_, err := q.PopFront(context.Background())
			errs <- err
		}()
	}

	drained := q.Close()
	if len(drained) != 2 {
		t.Errorf("Close() drained %d tasks, want 2", len(drained))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if !errors.Is(err, ErrQueueUnavailable) {
			t.Errorf("PopFront() after Close error = %v, want %v", err, ErrQueueUnavailable)
		}
	}

	if !q.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := q.PushBack(newTestTask("c")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("PushBack() after Close error = %v, want %v", err, ErrQueueClosed)
	}
	if again := q.Close(); again != nil {
		t.Errorf("second Close() = %v, want nil", again)
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue("test")
	const producers, perProducer = 8, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.PushBack(newTestTask(""))
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for {
		task, ok, err := q.TryPopFront()
		if err != nil {
			t.Fatalf("TryPopFront() error = %v", err)
		}
		if !ok {
			break
		}
		if seen[task.ID()] {
			t.Fatalf("task %s popped twice", task.ID())
		}
		seen[task.ID()] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("popped %d tasks, want %d", len(seen), producers*perProducer)
	}
}
