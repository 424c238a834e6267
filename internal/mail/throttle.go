// SPDX-License-Identifier: MIT

package mail

import (
	"context"
	"time"

	"github.com/ManuGH/sitekit/internal/metrics"
	"golang.org/x/time/rate"
)

// Throttled drops messages above a fixed rate. It guards admin error mail
// during an error storm.
type Throttled struct {
	next    Mailer
	limiter *rate.Limiter
}

// NewThrottled allows one message per interval with the given burst.
func NewThrottled(next Mailer, interval time.Duration, burst int) *Throttled {
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Send forwards msg or returns ErrThrottled without waiting.
func (t *Throttled) Send(ctx context.Context, msg Message) error {
	if !t.limiter.Allow() {
		metrics.MailSentTotal.WithLabelValues(backendName(t.next), "throttled").Inc()
		return ErrThrottled
	}
	return t.next.Send(ctx, msg)
}

func backendName(m Mailer) string {
	switch m.(type) {
	case *SMTPMailer:
		return "smtp"
	case *ConsoleMailer:
		return "console"
	default:
		return "other"
	}
}
