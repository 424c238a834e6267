// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ManuGH/sitekit/internal/log"
	"github.com/ManuGH/sitekit/internal/metrics"
	"github.com/ManuGH/sitekit/internal/reporting"
	"github.com/ManuGH/sitekit/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Task outcomes recorded in metrics and spans.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRetried   = "retried"
	StatusUnknown   = "unknown"
)

// DefaultMaxAttempts bounds redelivery of a failing task.
const DefaultMaxAttempts = 3

// DefaultRetryTimeout bounds how long a consumer waits to requeue a retry.
// The memory queue is drained by the same goroutines that publish retries.
const DefaultRetryTimeout = 5 * time.Second

// ErrUnknownTask is returned for messages naming an unregistered task.
var ErrUnknownTask = errors.New("tasks: unknown task")

// Worker consumes messages and runs the registered implementation.
type Worker struct {
	queue       Queue
	registry    *Registry
	workers     int
	maxAttempts int
	retryWait   time.Duration
	reporter    *reporting.Reporter
	tracer      trace.Tracer
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency sets the number of consumer goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithMaxAttempts sets how often a failing task is delivered in total.
func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithRetryTimeout bounds the requeue of a failed attempt. A retry that
// cannot be queued in time counts as a terminal failure.
func WithRetryTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.retryWait = d
		}
	}
}

// WithReporter sends terminal failures to error reporting.
func WithReporter(r *reporting.Reporter) WorkerOption {
	return func(w *Worker) { w.reporter = r }
}

// NewWorker builds a worker for queue and registry.
func NewWorker(queue Queue, registry *Registry, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:       queue,
		registry:    registry,
		workers:     1,
		maxAttempts: DefaultMaxAttempts,
		retryWait:   DefaultRetryTimeout,
		tracer:      telemetry.Tracer("sitekit/tasks"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run consumes until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	logger := log.WithComponent("tasks")
	logger.Info().
		Int("workers", w.workers).
		Strs("tasks", w.registry.Names()).
		Msg("worker started")
	err := w.queue.Consume(ctx, w.workers, w.Handle)
	logger.Info().Msg("worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle executes one message. A failed attempt below the limit is
// republished with Attempt incremented.
func (w *Worker) Handle(ctx context.Context, msg Message) error {
	ctx = log.ContextWithTaskID(ctx, msg.ID)
	logger := log.WithComponentFromContext(ctx, "tasks").With().
		Str(log.FieldTaskName, msg.Name).
		Int("attempt", msg.Attempt).
		Logger()

	ctx, span := w.tracer.Start(ctx, "task "+msg.Name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(telemetry.TaskAttributes(msg.Name, msg.ID, msg.Attempt)...),
	)
	defer span.End()

	start := time.Now()
	fn, ok := w.registry.Lookup(msg.Name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTask, msg.Name)
		w.finish(span, msg.Name, StatusUnknown, start, err)
		logger.Error().Err(err).Msg("dropping message")
		return err
	}

	err := w.execute(ctx, fn, msg)
	if err == nil {
		w.finish(span, msg.Name, StatusSucceeded, start, nil)
		logger.Debug().Dur("duration", time.Since(start)).Msg("task succeeded")
		return nil
	}

	if msg.Attempt < w.maxAttempts {
		retry := msg
		retry.Attempt++
		pubCtx, cancel := context.WithTimeout(ctx, w.retryWait)
		pubErr := w.queue.Publish(pubCtx, retry)
		cancel()
		if pubErr == nil {
			w.finish(span, msg.Name, StatusRetried, start, err)
			logger.Warn().Err(err).Msg("task failed, requeued")
			return err
		}
		logger.Error().Err(pubErr).Msg("requeue failed")
	}

	w.finish(span, msg.Name, StatusFailed, start, err)
	logger.Error().Err(err).Msg("task failed")
	if w.reporter.Integrated(reporting.IntegrationTasks) {
		w.reporter.CaptureException(ctx, err, map[string]string{log.FieldTaskName: msg.Name})
	}
	return err
}

// execute runs fn and converts a panic into an error.
func (w *Worker) execute(ctx context.Context, fn Func, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tasks: %s panicked: %v\n%s", msg.Name, r, debug.Stack())
		}
	}()
	return fn(ctx, msg.Payload)
}

func (w *Worker) finish(span trace.Span, name, status string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.ObserveTask(name, status, elapsed)
	span.SetAttributes(telemetry.TaskResultAttributes(status, elapsed.Milliseconds())...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
