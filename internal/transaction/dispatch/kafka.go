package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
)

// fetchRetryDelay paces FetchMessage retries after a broker error.
const fetchRetryDelay = time.Second

// KafkaQueue enqueues tasks onto a Kafka topic. Messages are keyed by
// transaction identifier so duplicate deliveries of the same transaction land
// on one partition, in order.
type KafkaQueue struct {
	writer *kafka.Writer
}

func NewKafkaQueue(brokers []string, topic string) *KafkaQueue {
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, task entity.ProcessTask) error {
	value, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.TransactionID),
		Value: value,
	})
}

func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}

// KafkaConsumer reads tasks from a consumer group and runs them through the
// handler under the retry policy. Offsets are committed after every handled
// message, abandoned or not: a task that exhausted its retries must not be
// redelivered to this group forever. Crashed workers leave their offsets
// uncommitted, so the broker redelivers and the idempotent state machine
// absorbs the duplicate.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler Handler
	policy  Policy

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaConsumer(brokers []string, topic, groupID string, handler Handler, policy Policy) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		handler: handler,
		policy:  policy.normalized(),
	}
}

func (c *KafkaConsumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(ctx)
}

func (c *KafkaConsumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	err := c.reader.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *KafkaConsumer) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			slog.ErrorContext(ctx, "failed to fetch dispatch message", "error", err)

			// Back off before retrying so a broker outage does not spin
			// this goroutine hot.
			if !wait(ctx, fetchRetryDelay) {
				return
			}
			continue
		}

		var task entity.ProcessTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			slog.ErrorContext(ctx, "discarding malformed dispatch message",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
		} else {
			deliver(ctx, c.handler, task, c.policy)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "failed to commit dispatch offset",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}
