// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/metrics"
)

// Entry is a task published on every beat.
type Entry struct {
	Name    string
	Payload any
}

// Scheduler publishes its entries once at start and then every interval.
type Scheduler struct {
	producer Producer
	interval time.Duration
	entries  []Entry

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
}

// NewScheduler creates a beat for producer.
func NewScheduler(producer Producer, interval time.Duration, entries ...Entry) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{producer: producer, interval: interval, entries: entries}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := log.WithComponent("beat")
	logger.Info().Dur("interval", s.interval).Int("entries", len(s.entries)).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	logger := log.WithComponent("beat")
	var errs []error
	for _, e := range s.entries {
		msg, err := Enqueue(ctx, s.producer, e.Name, e.Payload)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Str(log.FieldTaskName, e.Name).Msg("scheduled publish failed")
			errs = append(errs, err)
			continue
		}
		metrics.SchedulerLastRun.WithLabelValues(e.Name).SetToCurrentTime()
		logger.Debug().Str(log.FieldTaskName, e.Name).Str(log.FieldTaskID, msg.ID).Msg("scheduled task published")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := errors.Join(errs...); err != nil {
		s.lastErr = err.Error()
		return
	}
	s.lastRun = time.Now()
	s.lastErr = ""
}

// LastRun returns the time of the last fully successful beat and the error
// of the most recent one, if it failed.
func (s *Scheduler) LastRun() (time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// Interval reports the beat period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}
