package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
)

type handlerFunc func(ctx context.Context, task entity.ProcessTask) error

func (h handlerFunc) Process(ctx context.Context, task entity.ProcessTask) error {
	return h(ctx, task)
}

func TestConsumerRetriesUntilSuccess(t *testing.T) {
	bus := NewBus(10)

	var attempts int32
	done := make(chan struct{})
	handler := handlerFunc(func(ctx context.Context, task entity.ProcessTask) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("temporary failure")
		}
		select {
		case <-done:
		default:
			close(done)
		}
		return nil
	})

	consumer := NewConsumer(bus, handler, ConsumerConfig{
		Workers: 1,
		Policy:  Policy{MaxRetries: 3, BaseBackoff: time.Millisecond},
	})
	consumer.Start()

	task := entity.ProcessTask{TaskID: "task-1", TransactionID: "txn-1"}
	if err := bus.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue task: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop consumer: %v", err)
	}

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestConsumerAbandonsAfterExhaustion(t *testing.T) {
	bus := NewBus(10)

	var attempts int32
	handler := handlerFunc(func(ctx context.Context, task entity.ProcessTask) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent failure")
	})

	consumer := NewConsumer(bus, handler, ConsumerConfig{
		Workers: 1,
		Policy:  Policy{MaxRetries: 2, BaseBackoff: time.Millisecond},
	})
	consumer.Start()

	task := entity.ProcessTask{TaskID: "task-1", TransactionID: "txn-1"}
	if err := bus.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue task: %v", err)
	}

	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop consumer: %v", err)
	}

	// MaxRetries retries on top of the first attempt.
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDeliverStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var attempts int32
	handler := handlerFunc(func(ctx context.Context, task entity.ProcessTask) error {
		atomic.AddInt32(&attempts, 1)
		cancel()
		return errors.New("failure")
	})

	ok := deliver(ctx, handler, entity.ProcessTask{TaskID: "task-1"}, Policy{
		MaxRetries:  5,
		BaseBackoff: time.Hour, // never elapses; cancellation must win
	})

	if ok {
		t.Fatal("expected delivery to report failure")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected 1 attempt before cancel, got %d", got)
	}
}

func TestStopDeadlineCancelsInFlightBackoff(t *testing.T) {
	bus := NewBus(10)

	started := make(chan struct{})
	handler := handlerFunc(func(ctx context.Context, task entity.ProcessTask) error {
		select {
		case <-started:
		default:
			close(started)
		}
		return errors.New("failure")
	})

	consumer := NewConsumer(bus, handler, ConsumerConfig{
		Workers: 1,
		Policy:  Policy{MaxRetries: 5, BaseBackoff: time.Hour}, // parked in backoff
	})
	consumer.Start()

	task := entity.ProcessTask{TaskID: "task-1", TransactionID: "txn-1"}
	if err := bus.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue task: %v", err)
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- consumer.Stop(ctx) }()

	select {
	case err := <-stopped:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the in-flight backoff")
	}
}

func TestWaitReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if wait(ctx, time.Hour) {
		t.Fatal("expected wait to report cancellation")
	}

	if !wait(context.Background(), time.Millisecond) {
		t.Fatal("expected wait to elapse")
	}
}

func TestPolicyNormalized(t *testing.T) {
	p := Policy{MaxRetries: -1, BaseBackoff: 0}.normalized()
	if p.MaxRetries != 0 {
		t.Fatalf("expected MaxRetries 0, got %d", p.MaxRetries)
	}
	if p.BaseBackoff != 100*time.Millisecond {
		t.Fatalf("expected default backoff, got %v", p.BaseBackoff)
	}
}
