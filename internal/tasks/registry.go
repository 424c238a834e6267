// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/ManuGH/sitekit/internal/metrics"
)

// Func executes one task with its raw JSON payload.
type Func func(ctx context.Context, payload json.RawMessage) error

// Registry maps task names to their implementations.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name. Registering a name twice panics.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.funcs[name]; dup {
		panic(fmt.Sprintf("tasks: %q registered twice", name))
	}
	r.funcs[name] = fn
}

// Lookup returns the implementation for name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names lists registered tasks in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Enqueue publishes a new message for the named task.
func Enqueue(ctx context.Context, p Producer, name string, payload any) (Message, error) {
	msg, err := NewMessage(name, payload)
	if err != nil {
		return Message{}, err
	}
	if err := p.Publish(ctx, msg); err != nil {
		return Message{}, err
	}
	metrics.TasksPublishedTotal.WithLabelValues(name).Inc()
	return msg, nil
}
