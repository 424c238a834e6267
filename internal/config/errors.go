// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
)

// Kinds of configuration failure. Match them with errors.Is against a
// *ConfigurationError.
var (
	ErrUnknownEnvironment    = errors.New("unknown environment")
	ErrMissingVariable       = errors.New("missing required variable")
	ErrInvalidLiteral        = errors.New("invalid value")
	ErrDisallowedCombination = errors.New("disallowed combination")
	ErrInvalidLogLevel       = errors.New("invalid log level")
)

// ConfigurationError is the single error type returned while resolving the
// configuration. All instances are fatal at startup.
type ConfigurationError struct {
	Kind   error  // one of the Err* kinds above
	Key    string // environment variable that caused the failure, if any
	Reason string
	Err    error // underlying decode or validation error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration: " + e.Kind.Error()
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of this error.
func (e *ConfigurationError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func newError(kind error, key, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Kind: kind, Key: key, Reason: reason, Err: err}
}

func missing(key string) *ConfigurationError {
	return newError(ErrMissingVariable, key, "not set and no default", nil)
}

func invalid(key string, err error) *ConfigurationError {
	return newError(ErrInvalidLiteral, key, "", err)
}

func disallowed(key, format string, args ...any) *ConfigurationError {
	return newError(ErrDisallowedCombination, key, fmt.Sprintf(format, args...), nil)
}
