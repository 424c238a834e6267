// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys shared by the web and task instrumentation.
const (
	HTTPRouteKey = "http.route"

	CacheBackendKey = "cache.backend"
	CacheKeyKey     = "cache.key"
	CacheHitKey     = "cache.hit"

	TaskNameKey     = "task.name"
	TaskIDKey       = "task.id"
	TaskAttemptKey  = "task.attempt"
	TaskStatusKey   = "task.status"
	TaskDurationKey = "task.duration_ms"
)

// CacheAttributes describes a cache lookup.
func CacheAttributes(backend, key string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CacheBackendKey, backend),
		attribute.String(CacheKeyKey, key),
		attribute.Bool(CacheHitKey, hit),
	}
}

// TaskAttributes identifies one delivery of a task. Broker-less messages
// have no id.
func TaskAttributes(name, id string, attempt int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(TaskNameKey, name),
		attribute.Int(TaskAttemptKey, attempt),
	}
	if id != "" {
		attrs = append(attrs, attribute.String(TaskIDKey, id))
	}
	return attrs
}

// TaskResultAttributes records how a task finished.
func TaskResultAttributes(status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TaskStatusKey, status),
		attribute.Int64(TaskDurationKey, durationMS),
	}
}
