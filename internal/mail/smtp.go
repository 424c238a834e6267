// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/metrics"
)

const defaultSMTPTimeout = 30 * time.Second

// SMTPMailer delivers through a relay. UseSSL selects implicit TLS on
// connect; otherwise STARTTLS is used when the server offers it.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	useSSL   bool
	from     string
	timeout  time.Duration
	now      func() time.Time
	tls      *tls.Config
}

// NewSMTPMailer builds a mailer for the resolved email settings.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.HostUser,
		password: cfg.HostPassword,
		useSSL:   cfg.UseSSL,
		from:     cfg.DefaultFrom,
		timeout:  defaultSMTPTimeout,
		now:      time.Now,
		tls:      &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

// Send delivers msg. DEFAULT_FROM_EMAIL is used when msg.From is empty.
func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	msg, err := msg.normalized(s.from)
	if err != nil {
		metrics.MailSentTotal.WithLabelValues("smtp", "failed").Inc()
		return err
	}
	if err := s.deliver(ctx, msg); err != nil {
		metrics.MailSentTotal.WithLabelValues("smtp", "failed").Inc()
		return fmt.Errorf("mail: smtp %s:%d: %w", s.host, s.port, err)
	}
	metrics.MailSentTotal.WithLabelValues("smtp", "sent").Inc()
	return nil
}

func (s *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	if s.useSSL {
		d := &tls.Dialer{Config: s.tls}
		return d.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

func (s *SMTPMailer) deliver(ctx context.Context, msg Message) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	_ = conn.SetDeadline(deadline)
	// Cancellation unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if !s.useSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tls); err != nil {
				return err
			}
		}
	}
	if s.user != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
			return err
		}
	}

	if err := c.Mail(envelope(msg.From)); err != nil {
		return err
	}
	for _, to := range msg.To {
		if err := c.Rcpt(envelope(to)); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg.Bytes(s.now(), s.host)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// envelope strips the display name; addresses were validated by normalized.
func envelope(addr string) string {
	a, err := mail.ParseAddress(addr)
	if err != nil {
		return addr
	}
	return a.Address
}
