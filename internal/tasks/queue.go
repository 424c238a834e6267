// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tasks runs background work through a broker: an in-process channel,
// a Redis list or an AMQP queue.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("tasks: queue closed")

// Message is the envelope carried by every broker.
type Message struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewMessage wraps payload for the named task.
func NewMessage(name string, payload any) (Message, error) {
	msg := Message{
		ID:         uuid.NewString(),
		Name:       name,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("tasks: encode %s payload: %w", name, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

func encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func decode(b []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(b, &msg); err != nil {
		return Message{}, fmt.Errorf("tasks: decode message: %w", err)
	}
	if msg.Name == "" {
		return Message{}, errors.New("tasks: message without task name")
	}
	return msg, nil
}

// Handler processes one delivered message.
type Handler func(ctx context.Context, msg Message) error

// Producer publishes messages to the broker.
type Producer interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Consumer delivers messages to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, workers int, handler Handler) error
	Close() error
}

// Queue is both ends of a broker.
type Queue interface {
	Producer
	Consumer
}

// New connects to the broker selected by TASK_BROKER.
func New(cfg config.TaskConfig) (Queue, error) {
	switch cfg.Broker {
	case config.BrokerMemory, "":
		return NewMemoryQueue(256), nil
	case config.BrokerRedis:
		q, err := NewRedisQueue(RedisQueueConfig{URL: cfg.BrokerURL, Queue: cfg.Queue})
		if err != nil {
			return nil, err
		}
		return q, nil
	case config.BrokerAMQP:
		q, err := NewAMQPQueue(AMQPConfig{URL: cfg.BrokerURL, Queue: cfg.Queue, Prefetch: cfg.Workers, Durable: true})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("tasks: unsupported broker %q", cfg.Broker)
	}
}
