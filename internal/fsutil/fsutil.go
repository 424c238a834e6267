// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil keeps file writes below a configured root directory.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesRoot is returned when a relative name resolves outside its root.
var ErrEscapesRoot = errors.New("path escapes root")

// Confine joins a slash-separated relative name onto root and returns the
// resulting path, following any symlinks that already exist. Absolute names,
// backslashes and ".." segments leaving root are rejected.
func Confine(root, name string) (string, error) {
	if strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: backslash in %q", ErrEscapesRoot, name)
	}
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || escapes(rel) {
		return "", fmt.Errorf("%w: %q", ErrEscapesRoot, name)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("root %s: %w", root, err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		realRoot = absRoot
	}

	full := filepath.Join(realRoot, rel)
	resolved, err := resolveExisting(full)
	if err != nil {
		return "", err
	}
	within, err := filepath.Rel(realRoot, resolved)
	if err != nil {
		return "", err
	}
	if escapes(within) {
		return "", fmt.Errorf("%w: %q resolves to %s", ErrEscapesRoot, name, resolved)
	}
	return full, nil
}

// resolveExisting evaluates symlinks on the longest existing prefix of p.
func resolveExisting(p string) (string, error) {
	var rest []string
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			out, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", fmt.Errorf("resolve %s: %w", cur, err)
			}
			for i := len(rest) - 1; i >= 0; i-- {
				out = filepath.Join(out, rest[i])
			}
			return out, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
