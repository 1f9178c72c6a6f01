package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
)

func TestBusEnqueueSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus(2)
	task := entity.ProcessTask{TaskID: "task-1", TransactionID: "txn-1"}

	if err := bus.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue() err = %v", err)
	}

	select {
	case got := <-bus.Subscribe():
		if got.TaskID != "task-1" {
			t.Fatalf("unexpected task: %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for task")
	}
}

func TestBusEnqueueClosed(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	bus.Close()
	bus.Close() // closing twice is safe

	err := bus.Enqueue(context.Background(), entity.ProcessTask{TaskID: "task-1"})
	if !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}
}

func TestBusEnqueueContextCanceled(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	if err := bus.Enqueue(context.Background(), entity.ProcessTask{TaskID: "task-1"}); err != nil {
		t.Fatalf("Enqueue() err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Buffer is full, so this enqueue blocks until the context wins.
	err := bus.Enqueue(ctx, entity.ProcessTask{TaskID: "task-2"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
