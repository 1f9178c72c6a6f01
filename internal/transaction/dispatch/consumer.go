package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
)

// Handler runs one delivery of a task. A returned error asks for the whole
// task to be retried from the top; the handler must be idempotent because the
// same task can be delivered, and even run, more than once.
type Handler interface {
	Process(ctx context.Context, task entity.ProcessTask) error
}

// Policy is the retry discipline applied to every delivery: full-task retries
// with exponential backoff, then abandonment.
type Policy struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 100 * time.Millisecond
	}
	return p
}

// deliver runs the handler under the policy. It returns true on success and
// false when the task was abandoned after exhausting its attempts.
func deliver(ctx context.Context, h Handler, task entity.ProcessTask, policy Policy) bool {
	backoff := policy.BaseBackoff

	for attempt := 0; ; attempt++ {
		err := h.Process(ctx, task)
		if err == nil {
			return true
		}

		if attempt == policy.MaxRetries {
			slog.ErrorContext(ctx, "abandoning transaction after retries",
				"task_id", task.TaskID,
				"transaction_id", task.TransactionID,
				"attempts", attempt+1,
				"error", err,
			)
			return false
		}

		slog.WarnContext(ctx, "transaction processing failed, retrying",
			"task_id", task.TaskID,
			"transaction_id", task.TransactionID,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		if !wait(ctx, backoff) {
			return false
		}
		backoff *= 2
	}
}

// wait sleeps for d, returning false when ctx is canceled first.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ConsumerConfig sizes the worker pool reading from a Bus.
type ConsumerConfig struct {
	Workers int
	Policy  Policy
}

// Consumer drains a Bus with a pool of workers, applying the retry policy to
// each task.
type Consumer struct {
	bus     *Bus
	handler Handler
	workers int
	policy  Policy

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(bus *Bus, handler Handler, cfg ConsumerConfig) *Consumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 4
	}

	return &Consumer{
		bus:     bus,
		handler: handler,
		workers: workers,
		policy:  cfg.Policy.normalized(),
	}
}

func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
}

// Stop closes the bus and waits for in-flight tasks to finish. When ctx
// expires first, the workers' context is canceled so an in-flight delivery or
// backoff is interrupted instead of outliving the shutdown deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if c.cancel != nil {
			c.cancel()
		}
		<-done
		return ctx.Err()
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()

	for task := range c.bus.Subscribe() {
		deliver(ctx, c.handler, task, c.policy)
	}
}
