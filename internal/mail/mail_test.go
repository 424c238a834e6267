// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP accepts one session and records the commands it saw.
type fakeSMTP struct {
	ln   net.Listener
	done chan struct{}

	mu       sync.Mutex
	commands []string
	data     string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		<-s.done
	})
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO":
			_ = tp.PrintfLine("250-localhost")
			_ = tp.PrintfLine("250 AUTH PLAIN")
		case "AUTH":
			_ = tp.PrintfLine("235 2.7.0 Authentication successful")
		case "MAIL", "RCPT":
			_ = tp.PrintfLine("250 OK")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			b, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = string(b)
			s.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 unknown")
		}
	}
}

func (s *fakeSMTP) session() ([]string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...), s.data
}

func TestSMTPMailer_Send(t *testing.T) {
	srv := startFakeSMTP(t)
	m := NewSMTPMailer(config.EmailConfig{
		Enabled:      true,
		Backend:      config.MailSMTP,
		DefaultFrom:  "Site <noreply@example.com>",
		Host:         "127.0.0.1",
		Port:         srv.port(),
		HostUser:     "mailer",
		HostPassword: "s3cret",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Send(ctx, Message{
		To:      []string{"Ops <ops@example.com>", "dev@example.com"},
		Subject: "Deploy finished",
		Body:    "all good\n.hidden line",
	})
	require.NoError(t, err)

	_ = srv.ln.Close()
	<-srv.done

	commands, data := srv.session()
	wantAuth := "AUTH PLAIN " + base64.StdEncoding.EncodeToString([]byte("\x00mailer\x00s3cret"))
	assert.Contains(t, commands, wantAuth)

	var mailFrom, rcpts []string
	for _, c := range commands {
		switch {
		case strings.HasPrefix(c, "MAIL FROM:"):
			mailFrom = append(mailFrom, c)
		case strings.HasPrefix(c, "RCPT TO:"):
			rcpts = append(rcpts, c)
		}
	}
	require.Len(t, mailFrom, 1)
	assert.True(t, strings.HasPrefix(mailFrom[0], "MAIL FROM:<noreply@example.com>"), mailFrom[0])
	assert.Equal(t, []string{"RCPT TO:<ops@example.com>", "RCPT TO:<dev@example.com>"}, rcpts)

	// ReadDotBytes undoes dot-stuffing and normalizes line endings.
	assert.Contains(t, data, "Subject: Deploy finished\n")
	assert.Contains(t, data, "From: Site <noreply@example.com>\n")
	assert.Contains(t, data, "\n\nall good\n.hidden line\n")
}

func TestSMTPMailer_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m := NewSMTPMailer(config.EmailConfig{Host: "127.0.0.1", Port: port, DefaultFrom: "noreply@example.com"})
	err = m.Send(context.Background(), Message{To: []string{"ops@example.com"}, Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
}

func TestMessage_Validation(t *testing.T) {
	m := NewConsoleMailer(zerolog.Nop())

	err := m.Send(context.Background(), Message{Subject: "nobody"})
	assert.ErrorIs(t, err, ErrNoRecipients)

	err = m.Send(context.Background(), Message{To: []string{"not an address"}})
	assert.Error(t, err)
}

func TestConsoleMailer_Logs(t *testing.T) {
	var buf bytes.Buffer
	m := NewConsoleMailer(zerolog.New(&buf))

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"ops@example.com"}, Subject: "hello", Body: "body"}))
	out := buf.String()
	assert.Contains(t, out, `"subject":"hello"`)
	assert.Contains(t, out, `"from":"webmaster@localhost"`)
	assert.Contains(t, out, `"component":"mail"`)
}

func TestMessage_Bytes(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := string(Message{
		From:    "noreply@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Grüße",
		Body:    "line one\r\nline two",
	}.Bytes(now, "example.com"))

	assert.Contains(t, b, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, b, "Subject: =?utf-8?q?Gr=C3=BC=C3=9Fe?=\r\n")
	assert.Contains(t, b, "Date: Sat, 01 Mar 2025 12:00:00 +0000\r\n")
	assert.Contains(t, b, "@example.com>\r\n")
	assert.True(t, strings.HasSuffix(b, "\r\n\r\nline one\r\nline two\r\n"))
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (r *recordingMailer) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func TestMailAdmins(t *testing.T) {
	rec := &recordingMailer{}
	admins := []config.Person{{Name: "Ada", Email: "ada@example.com"}, {Name: "Bob", Email: "bob@example.com"}}

	require.NoError(t, MailAdmins(context.Background(), rec, "server@example.com", admins, "Internal Server Error: /", "trace"))
	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, "[sitekit] Internal Server Error: /", msg.Subject)
	assert.Equal(t, "server@example.com", msg.From)
	assert.Equal(t, []string{`"Ada" <ada@example.com>`, `"Bob" <bob@example.com>`}, msg.To)

	require.NoError(t, MailAdmins(context.Background(), rec, "server@example.com", nil, "ignored", ""))
	assert.Len(t, rec.sent, 1)
}

func TestThrottled(t *testing.T) {
	rec := &recordingMailer{}
	th := NewThrottled(rec, time.Hour, 2)
	msg := Message{To: []string{"ops@example.com"}}

	require.NoError(t, th.Send(context.Background(), msg))
	require.NoError(t, th.Send(context.Background(), msg))
	assert.ErrorIs(t, th.Send(context.Background(), msg), ErrThrottled)
	assert.Len(t, rec.sent, 2)
}

func TestNew_SelectsBackend(t *testing.T) {
	_, ok := New(config.EmailConfig{Backend: config.MailConsole}, zerolog.Nop()).(*ConsoleMailer)
	assert.True(t, ok)
	_, ok = New(config.EmailConfig{Enabled: true, Backend: config.MailSMTP, Host: "smtp.example.com", Port: 465}, zerolog.Nop()).(*SMTPMailer)
	assert.True(t, ok)
}
