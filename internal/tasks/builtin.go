// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/sitekit/internal/mail"
)

// Built-in task names.
const (
	SitemapRefresh = "sitemap.refresh"
	MailSend       = "mail.send"
)

// SitemapRefresher rebuilds the cached sitemap.
type SitemapRefresher interface {
	Refresh(ctx context.Context) ([]byte, error)
}

// RegisterBuiltins wires the tasks every deployment runs.
func RegisterBuiltins(r *Registry, sitemap SitemapRefresher, mailer mail.Mailer) {
	r.Register(SitemapRefresh, func(ctx context.Context, _ json.RawMessage) error {
		_, err := sitemap.Refresh(ctx)
		return err
	})
	r.Register(MailSend, func(ctx context.Context, payload json.RawMessage) error {
		var msg mail.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("mail.send: decode payload: %w", err)
		}
		return mailer.Send(ctx, msg)
	})
}

// QueuedMailer hands messages to the worker as mail.send tasks.
type QueuedMailer struct {
	producer Producer
}

// NewQueuedMailer creates a Mailer that publishes to producer.
func NewQueuedMailer(producer Producer) *QueuedMailer {
	return &QueuedMailer{producer: producer}
}

// Send enqueues msg.
func (q *QueuedMailer) Send(ctx context.Context, msg mail.Message) error {
	_, err := Enqueue(ctx, q.producer, MailSend, msg)
	return err
}

// DefaultSchedule is what the beat publishes.
func DefaultSchedule() []Entry {
	return []Entry{{Name: SitemapRefresh}}
}
