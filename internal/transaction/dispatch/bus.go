// Package dispatch carries processing tasks from intake to the workers.
//
// Two drivers exist: an in-process Bus for development and tests, and Kafka
// for real deployments. Delivery is at-least-once either way; the worker side
// owns the retry policy and relies on the state machine's idempotence for
// duplicate deliveries.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
)

var ErrBusClosed = errors.New("dispatch bus is closed")

// Bus is a buffered in-process task channel.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	ch     chan entity.ProcessTask
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}

	return &Bus{
		ch: make(chan entity.ProcessTask, buffer),
	}
}

func (b *Bus) Enqueue(ctx context.Context, task entity.ProcessTask) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}

	select {
	case b.ch <- task:
		b.mu.RUnlock()
		return nil
	case <-ctx.Done():
		b.mu.RUnlock()
		return ctx.Err()
	}
}

func (b *Bus) Subscribe() <-chan entity.ProcessTask {
	return b.ch
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.ch)
}
