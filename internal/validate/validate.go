// SPDX-License-Identifier: MIT

// Package validate provides field validation helpers used while assembling
// the site configuration.
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Error is one failed check against a named variable.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError carries every failed check of one Validator, in the order
// they were recorded.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error {
	return e.errors
}

// Field names the variable of the first failure.
func (e ValidationError) Field() string {
	if len(e.errors) == 0 {
		return ""
	}
	return e.errors[0].Field
}

func (e ValidationError) Error() string {
	msgs := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator records failures instead of stopping at the first one.
type Validator struct {
	errors []Error
}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) failf(field string, value any, format string, args ...any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

// IsValid reports whether no check has failed.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns the failures recorded so far.
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL requires an absolute URL with a host. A non-empty schemes list
// restricts the scheme.
func (v *Validator) URL(field, value string, schemes []string) {
	if value == "" {
		v.failf(field, value, "URL cannot be empty")
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.failf(field, value, "invalid URL: %v", err)
	case u.Host == "":
		v.failf(field, value, "URL must have a host")
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.failf(field, value, "unsupported URL scheme %q (allowed: %s)", u.Scheme, strings.Join(schemes, ", "))
	}
}

func (v *Validator) Port(field string, port int) {
	if port < 1 || port > 65535 {
		v.failf(field, port, "port must be between 1 and 65535, got %d", port)
	}
}

// Range checks lo <= value <= hi.
func (v *Validator) Range(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.failf(field, value, "value must be between %d and %d, got %d", lo, hi, value)
	}
}

// FloatRange checks lo <= value <= hi.
func (v *Validator) FloatRange(field string, value, lo, hi float64) {
	if value < lo || value > hi {
		v.failf(field, value, "value must be between %g and %g, got %g", lo, hi, value)
	}
}

// Directory checks that path is a directory. Unless mustExist is set a
// missing directory is created.
func (v *Validator) Directory(field, path string, mustExist bool) {
	if path == "" {
		v.failf(field, path, "directory path cannot be empty")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		v.failf(field, path, "invalid path: %v", err)
		return
	}

	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err) && mustExist:
		v.failf(field, path, "directory does not exist")
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0o750); err != nil {
			v.failf(field, path, "cannot create directory: %v", err)
		}
	case err != nil:
		v.failf(field, path, "cannot access directory: %v", err)
	case !info.IsDir():
		v.failf(field, path, "path is not a directory")
	}
}

// AbsolutePath rejects relative paths and ".." segments.
func (v *Validator) AbsolutePath(field, path string) {
	switch {
	case path == "":
		v.failf(field, path, "path cannot be empty")
	case !filepath.IsAbs(path):
		v.failf(field, path, "must be an absolute path, got %s", path)
	case slices.Contains(strings.Split(filepath.ToSlash(path), "/"), ".."):
		v.failf(field, path, "path contains traversal sequences (..)")
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.failf(field, value, "value cannot be empty")
	}
}

// OneOf requires an exact, case-sensitive match.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.failf(field, value, "value must be one of %s, got %q", strings.Join(allowed, ", "), value)
	}
}

// Email validates a single RFC 5322 address without display name.
func (v *Validator) Email(field, value string) {
	addr, err := mail.ParseAddress(value)
	switch {
	case err != nil:
		v.failf(field, value, "invalid email address: %v", err)
	case addr.Name != "":
		v.failf(field, value, "email address must not carry a display name")
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.failf(field, value, "value must be positive, got %d", value)
	}
}

func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.failf(field, value, "value cannot be negative, got %d", value)
	}
}
