// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"sync"
)

// Kind is the decoding applied to a raw variable.
type Kind string

const (
	KindString   Kind = "string"
	KindBool     Kind = "bool"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindDuration Kind = "duration"
	KindList     Kind = "list"  // flow sequence of strings, e.g. ["a.com", "b.com"]
	KindPeople   Kind = "pairs" // flow sequence of [name, email] pairs
)

// Policy documents when a variable must be present.
type Policy string

const (
	PolicyAlways      Policy = "always"       // every environment
	PolicyDeployed    Policy = "deployed"     // staging and production
	PolicyWhenEnabled Policy = "when-enabled" // only when Flag decodes to true
	PolicyEngine      Policy = "engine"       // only when DB_ENGINE equals Flag
	PolicyOptional    Policy = "optional"
)

// Binding is the schema entry for one environment variable.
type Binding struct {
	Key       string
	Kind      Kind
	Default   *string // nil means no default
	Policy    Policy
	Flag      string // enabling variable or engine for conditional policies
	Sensitive bool
	Group     string
	Help      string
}

// HasDefault reports whether the binding carries a default value.
func (b Binding) HasDefault() bool { return b.Default != nil }

// DefaultString returns the raw default or "" when none is defined.
func (b Binding) DefaultString() string {
	if b.Default == nil {
		return ""
	}
	return *b.Default
}

// Requirement renders the policy for humans.
func (b Binding) Requirement() string {
	switch b.Policy {
	case PolicyWhenEnabled:
		return "when " + b.Flag + " is true"
	case PolicyEngine:
		return "when DB_ENGINE=" + b.Flag
	default:
		return string(b.Policy)
	}
}

func def(v string) *string { return &v }

// Registry is the inventory of recognised variables.
type Registry struct {
	bindings []Binding
	byKey    map[string]Binding
}

// Bindings returns the schema in declaration order.
func (r *Registry) Bindings() []Binding {
	out := make([]Binding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// Lookup returns the binding for an environment variable.
func (r *Registry) Lookup(key string) (Binding, bool) {
	b, ok := r.byKey[key]
	return b, ok
}

// MustLookup panics on unknown keys. Assembly only asks for declared keys.
func (r *Registry) MustLookup(key string) Binding {
	b, ok := r.byKey[key]
	if !ok {
		panic(fmt.Sprintf("config: %s is not declared in the schema", key))
	}
	return b
}

var (
	schema     *Registry
	schemaErr  error
	schemaOnce sync.Once
)

// Schema returns the registry of recognised variables.
// Thread-safe via sync.Once.
func Schema() (*Registry, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = buildSchema()
	})
	return schema, schemaErr
}

func mustSchema() *Registry {
	r, err := Schema()
	if err != nil {
		panic(err)
	}
	return r
}

func buildSchema() (*Registry, error) {
	entries := []Binding{
		// --- CORE ---
		{Key: EnvKey, Kind: KindString, Policy: PolicyAlways, Group: "core", Help: "environment tag: development, staging, production or test"},
		{Key: "DEBUG", Kind: KindBool, Default: def("False"), Policy: PolicyOptional, Group: "core", Help: "debug mode, rejected in production"},
		{Key: "SITE_ROOT", Kind: KindString, Default: def("."), Policy: PolicyOptional, Group: "core", Help: "project root used for default paths"},
		{Key: "ALLOWED_HOSTS", Kind: KindList, Policy: PolicyAlways, Group: "core", Help: "hosts this site may serve"},

		// --- SECURITY ---
		{Key: "SECRET_KEY", Kind: KindString, Policy: PolicyAlways, Sensitive: true, Group: "security", Help: "signing key for sessions and CSRF tokens"},
		{Key: "ADMIN_USERNAME", Kind: KindString, Default: def(""), Policy: PolicyOptional, Group: "security", Help: "admin login; admin is closed when unset"},
		{Key: "ADMIN_PASSWORD", Kind: KindString, Default: def(""), Policy: PolicyOptional, Sensitive: true, Group: "security"},
		{Key: "TRUST_PROXY_HEADERS", Kind: KindBool, Default: def("False"), Policy: PolicyOptional, Group: "security", Help: "honour X-Forwarded-Proto from a TLS-terminating proxy"},

		// --- DATABASE ---
		{Key: "DB_ENGINE", Kind: KindString, Default: def("mysql"), Policy: PolicyOptional, Group: "database", Help: "mysql or sqlite"},
		{Key: "DB_NAME", Kind: KindString, Policy: PolicyAlways, Group: "database", Help: "schema name, or file path for sqlite"},
		{Key: "DB_USER", Kind: KindString, Policy: PolicyEngine, Flag: "mysql", Group: "database"},
		{Key: "DB_PASSWORD", Kind: KindString, Policy: PolicyEngine, Flag: "mysql", Sensitive: true, Group: "database"},
		{Key: "DB_HOST", Kind: KindString, Policy: PolicyEngine, Flag: "mysql", Group: "database"},
		{Key: "DB_PORT", Kind: KindInt, Policy: PolicyEngine, Flag: "mysql", Group: "database"},

		// --- CACHE ---
		{Key: "CACHE_BACKEND", Kind: KindString, Default: def(""), Policy: PolicyOptional, Group: "cache", Help: "memory, redis, file or dummy; test always uses dummy"},
		{Key: "CACHE_LOCATION", Kind: KindString, Default: def(""), Policy: PolicyOptional, Group: "cache", Help: "redis address or badger directory"},

		// --- STORAGE ---
		{Key: "MEDIA_ROOT", Kind: KindString, Policy: PolicyDeployed, Group: "storage", Help: "uploaded files; defaults to <root>/media locally"},
		{Key: "STATIC_ROOT", Kind: KindString, Policy: PolicyDeployed, Group: "storage", Help: "collected static files"},

		// --- LOGGING ---
		{Key: "LOG_LEVEL", Kind: KindString, Default: def("ERROR"), Policy: PolicyOptional, Group: "logging", Help: "CRITICAL, ERROR, WARNING, INFO, DEBUG or NOTSET"},
		{Key: "LOG_FORMAT", Kind: KindString, Default: def(""), Policy: PolicyOptional, Group: "logging", Help: "json, console or key_value"},

		// --- ERROR REPORTING ---
		{Key: "SENTRY_ENABLED", Kind: KindBool, Default: def("False"), Policy: PolicyOptional, Group: "reporting"},
		{Key: "SENTRY_DSN", Kind: KindString, Policy: PolicyWhenEnabled, Flag: "SENTRY_ENABLED", Sensitive: true, Group: "reporting"},

		// --- EMAIL ---
		{Key: "EMAIL_ENABLED", Kind: KindBool, Default: def("False"), Policy: PolicyOptional, Group: "email", Help: "console backend when false"},
		{Key: "DEFAULT_FROM_EMAIL", Kind: KindString, Policy: PolicyWhenEnabled, Flag: "EMAIL_ENABLED", Group: "email"},
		{Key: "EMAIL_HOST", Kind: KindString, Policy: PolicyWhenEnabled, Flag: "EMAIL_ENABLED", Group: "email"},
		{Key: "EMAIL_PORT", Kind: KindInt, Policy: PolicyWhenEnabled, Flag: "EMAIL_ENABLED", Group: "email"},
		{Key: "EMAIL_HOST_USER", Kind: KindString, Policy: PolicyWhenEnabled, Flag: "EMAIL_ENABLED", Group: "email"},
		{Key: "EMAIL_HOST_PASSWORD", Kind: KindString, Policy: PolicyWhenEnabled, Flag: "EMAIL_ENABLED", Sensitive: true, Group: "email"},
		{Key: "EMAIL_USE_SSL", Kind: KindBool, Policy: PolicyWhenEnabled, Flag: "EMAIL_ENABLED", Group: "email"},
		{Key: "SERVER_EMAIL", Kind: KindString, Policy: PolicyWhenEnabled, Flag: "EMAIL_ENABLED", Group: "email", Help: "sender of error mails to ADMINS"},

		// --- SITE ---
		{Key: "SITE_SCHEME", Kind: KindString, Default: def("http"), Policy: PolicyOptional, Group: "site"},
		{Key: "SITE_ID", Kind: KindInt, Policy: PolicyAlways, Group: "site"},
		{Key: "SITE_ADMIN_PATH", Kind: KindString, Default: def("admin"), Policy: PolicyOptional, Group: "site"},

		// --- PEOPLE ---
		{Key: "ADMINS", Kind: KindPeople, Policy: PolicyAlways, Group: "people", Help: "receive error mails"},
		{Key: "MANAGERS", Kind: KindPeople, Policy: PolicyAlways, Group: "people"},

		// --- TASKS ---
		{Key: "TASK_BROKER", Kind: KindString, Default: def("memory"), Policy: PolicyOptional, Group: "tasks", Help: "memory, redis or amqp"},
		{Key: "TASK_BROKER_URL", Kind: KindString, Default: def(""), Policy: PolicyOptional, Sensitive: true, Group: "tasks"},
		{Key: "TASK_QUEUE", Kind: KindString, Default: def("sitekit"), Policy: PolicyOptional, Group: "tasks"},
		{Key: "TASK_WORKERS", Kind: KindInt, Default: def("4"), Policy: PolicyOptional, Group: "tasks"},
		{Key: "TASK_BEAT_INTERVAL", Kind: KindDuration, Default: def("24h"), Policy: PolicyOptional, Group: "tasks", Help: "period of scheduled sitemap refreshes"},

		// --- SERVER ---
		{Key: "LISTEN_ADDR", Kind: KindString, Default: def(":8000"), Policy: PolicyOptional, Group: "server"},
		{Key: "METRICS_ADDR", Kind: KindString, Default: def(""), Policy: PolicyOptional, Group: "server", Help: "separate listener for /metrics; empty serves it on LISTEN_ADDR"},
		{Key: "SERVER_READ_TIMEOUT", Kind: KindDuration, Default: def("15s"), Policy: PolicyOptional, Group: "server"},
		{Key: "SERVER_WRITE_TIMEOUT", Kind: KindDuration, Default: def("30s"), Policy: PolicyOptional, Group: "server"},
		{Key: "SERVER_IDLE_TIMEOUT", Kind: KindDuration, Default: def("120s"), Policy: PolicyOptional, Group: "server"},
		{Key: "SERVER_SHUTDOWN_TIMEOUT", Kind: KindDuration, Default: def("30s"), Policy: PolicyOptional, Group: "server"},
		{Key: "RATE_LIMIT_RPM", Kind: KindInt, Default: def("600"), Policy: PolicyOptional, Group: "server", Help: "requests per minute per client, 0 disables"},

		// --- TELEMETRY ---
		{Key: "OTEL_ENABLED", Kind: KindBool, Default: def("False"), Policy: PolicyOptional, Group: "telemetry"},
		{Key: "OTEL_EXPORTER", Kind: KindString, Default: def("grpc"), Policy: PolicyOptional, Group: "telemetry", Help: "grpc or http"},
		{Key: "OTEL_ENDPOINT", Kind: KindString, Default: def(""), Policy: PolicyOptional, Group: "telemetry"},
		{Key: "OTEL_SAMPLING_RATE", Kind: KindFloat, Default: def("1.0"), Policy: PolicyOptional, Group: "telemetry"},
	}

	r := &Registry{
		bindings: entries,
		byKey:    make(map[string]Binding, len(entries)),
	}
	for _, e := range entries {
		if _, dup := r.byKey[e.Key]; dup {
			return nil, fmt.Errorf("duplicate schema key %s", e.Key)
		}
		if (e.Policy == PolicyWhenEnabled || e.Policy == PolicyEngine) && e.Flag == "" {
			return nil, fmt.Errorf("schema key %s: policy %s needs a flag", e.Key, e.Policy)
		}
		r.byKey[e.Key] = e
	}
	for _, e := range entries {
		if e.Policy != PolicyWhenEnabled {
			continue
		}
		flag, ok := r.byKey[e.Flag]
		if !ok || flag.Kind != KindBool {
			return nil, fmt.Errorf("schema key %s: flag %s must be a declared bool", e.Key, e.Flag)
		}
	}
	return r, nil
}
