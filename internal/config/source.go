// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "os"

// Source looks up a raw environment value. The boolean reports presence,
// so an empty value that is set is distinguishable from an absent one.
type Source func(key string) (string, bool)

// OSSource reads the process environment.
func OSSource() Source {
	return os.LookupEnv
}

// MapSource serves values from a fixed map. The map is copied.
func MapSource(values map[string]string) Source {
	snapshot := make(map[string]string, len(values))
	for k, v := range values {
		snapshot[k] = v
	}
	return func(key string) (string, bool) {
		v, ok := snapshot[key]
		return v, ok
	}
}

// Overlay returns a source that prefers values from over and falls back to src.
func Overlay(src Source, over map[string]string) Source {
	top := MapSource(over)
	return func(key string) (string, bool) {
		if v, ok := top(key); ok {
			return v, true
		}
		return src(key)
	}
}
