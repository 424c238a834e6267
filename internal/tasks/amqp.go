// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig holds the broker connection parameters.
type AMQPConfig struct {
	URL      string
	Queue    string
	Prefetch int
	Durable  bool
}

// AMQPQueue publishes to and consumes from a single AMQP queue on the
// default exchange.
type AMQPQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu sync.Mutex // serializes publishes on the shared channel
}

// NewAMQPQueue dials the broker and declares the queue.
func NewAMQPQueue(cfg AMQPConfig) (*AMQPQueue, error) {
	if cfg.URL == "" {
		return nil, errors.New("tasks: amqp broker URL is empty")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueueName
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("tasks: connect to amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tasks: open amqp channel: %w", err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("tasks: set amqp prefetch: %w", err)
		}
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("tasks: declare amqp queue %s: %w", queue, err)
	}
	return &AMQPQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Publish sends msg as a persistent JSON message.
func (q *AMQPQueue) Publish(ctx context.Context, msg Message) error {
	b, err := encode(msg)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Name,
		Timestamp:    msg.EnqueuedAt,
		Body:         b,
	})
	if err != nil {
		return fmt.Errorf("tasks: amqp publish %s: %w", msg.Name, err)
	}
	return nil
}

// Consume acknowledges each delivery after the handler returns. Retries are
// republished by the worker, so failed deliveries are acked too.
func (q *AMQPQueue) Consume(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}
	deliveries, err := q.ch.ConsumeWithContext(ctx, q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("tasks: amqp consume: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					msg, err := decode(d.Body)
					if err != nil {
						_ = d.Reject(false)
						continue
					}
					_ = handler(ctx, msg)
					_ = d.Ack(false)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// HealthCheck reports whether the connection is still open.
func (q *AMQPQueue) HealthCheck(_ context.Context) error {
	if q.conn.IsClosed() {
		return errors.New("tasks: amqp connection closed")
	}
	return nil
}

// Close closes the channel and the connection.
func (q *AMQPQueue) Close() error {
	if q == nil {
		return nil
	}
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil && !q.conn.IsClosed() {
		return q.conn.Close()
	}
	return nil
}
