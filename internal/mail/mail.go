// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mail delivers site mail over SMTP or to the log.
package mail

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/metrics"
	"github.com/rs/zerolog"
)

// SubjectPrefix is prepended to mail sent to ADMINS and MANAGERS.
const SubjectPrefix = "[sitekit] "

var (
	// ErrNoRecipients is returned for a message without addresses.
	ErrNoRecipients = errors.New("mail: no recipients")
	// ErrThrottled is returned when the rate limiter drops a message.
	ErrThrottled = errors.New("mail: throttled")
)

// Message is a plain text mail. It doubles as the mail.send task payload.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the backend selected by the resolved email settings.
func New(cfg config.EmailConfig, logger zerolog.Logger) Mailer {
	if cfg.Backend == config.MailSMTP {
		return NewSMTPMailer(cfg)
	}
	return NewConsoleMailer(logger)
}

// normalized checks addresses and fills in the sender.
func (m Message) normalized(defaultFrom string) (Message, error) {
	if m.From == "" {
		m.From = defaultFrom
	}
	if _, err := mail.ParseAddress(m.From); err != nil {
		return m, fmt.Errorf("mail: invalid sender %q: %w", m.From, err)
	}
	if len(m.To) == 0 {
		return m, ErrNoRecipients
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return m, fmt.Errorf("mail: invalid recipient %q: %w", to, err)
		}
	}
	return m, nil
}

// Bytes renders the message as RFC 5322 text with CRLF line endings.
func (m Message) Bytes(now time.Time, domain string) []byte {
	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}
	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID(now, domain))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	for _, line := range strings.Split(body, "\n") {
		// Dot-stuffing is handled by the SMTP data writer.
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

func messageID(now time.Time, domain string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	if domain == "" {
		domain = "localhost"
	}
	return fmt.Sprintf("<%d.%s@%s>", now.UnixNano(), hex.EncodeToString(b[:]), domain)
}

// MailAdmins sends subject and body to the given people from SERVER_EMAIL.
func MailAdmins(ctx context.Context, m Mailer, from string, people []config.Person, subject, body string) error {
	msg, ok := AdminMessage(from, people, subject, body)
	if !ok {
		return nil
	}
	return m.Send(ctx, msg)
}

// AdminMessage builds the message MailAdmins would send. ok is false when
// there is nobody to notify.
func AdminMessage(from string, people []config.Person, subject, body string) (Message, bool) {
	if len(people) == 0 {
		return Message{}, false
	}
	to := make([]string, 0, len(people))
	for _, p := range people {
		addr := mail.Address{Name: p.Name, Address: p.Email}
		to = append(to, addr.String())
	}
	return Message{From: from, To: to, Subject: SubjectPrefix + subject, Body: body}, true
}

// ConsoleMailer writes messages to the log instead of sending them.
type ConsoleMailer struct {
	logger zerolog.Logger
}

// NewConsoleMailer creates the development backend.
func NewConsoleMailer(logger zerolog.Logger) *ConsoleMailer {
	return &ConsoleMailer{logger: logger.With().Str("component", "mail").Logger()}
}

// Send logs the message.
func (c *ConsoleMailer) Send(_ context.Context, msg Message) error {
	msg, err := msg.normalized("webmaster@localhost")
	if err != nil {
		metrics.MailSentTotal.WithLabelValues("console", "failed").Inc()
		return err
	}
	c.logger.Info().
		Str("from", msg.From).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("mail (console backend)")
	metrics.MailSentTotal.WithLabelValues("console", "sent").Inc()
	return nil
}
