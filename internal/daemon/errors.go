// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingLogger is returned when logger is not provided
	ErrMissingLogger = errors.New("logger is required")

	// ErrMissingHandler is returned when the site handler is not provided
	ErrMissingHandler = errors.New("site handler is required")

	// ErrMissingConfig is returned when deps carry no resolved configuration.
	ErrMissingConfig = errors.New("resolved configuration is required")

	// ErrNothingToRun is returned when an App has neither a manager nor a worker.
	ErrNothingToRun = errors.New("app has nothing to run")

	// ErrManagerNotStarted is returned when trying to shutdown a manager that hasn't started
	ErrManagerNotStarted = errors.New("manager not started")
)
