// SPDX-License-Identifier: MIT

// Package templates renders the site's html and text templates. Defaults
// are embedded in the binary and files in the configured directories
// override them by name.
package templates

import (
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	texttemplate "text/template"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/rs/zerolog"
)

//go:embed defaults/*
var defaultsFS embed.FS

// ErrNotFound is returned when no template with the requested name exists.
var ErrNotFound = errors.New("template not found")

// Loader renders named templates.
type Loader interface {
	Render(w io.Writer, name string, data any) error
	Close() error
}

// New returns the loader selected by the template strategy.
func New(cfg config.TemplateConfig, logger zerolog.Logger) (Loader, error) {
	switch cfg.Strategy {
	case config.TemplateHotReload:
		h, err := NewHotReload(cfg.Dirs, cfg.AppDirs, logger)
		if err != nil {
			return nil, err
		}
		return h, nil
	case config.TemplateCached, "":
		// The cached loader always wraps the embedded set, so AppDirs is
		// off in deployed configs without dropping the defaults.
		c, err := NewCached(cfg.Dirs, true)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown template strategy %q", cfg.Strategy)
	}
}

type executor interface {
	Execute(w io.Writer, data any) error
}

// set is an immutable parsed template collection.
type set struct {
	templates map[string]executor
}

func (s *set) render(w io.Writer, name string, data any) error {
	t, ok := s.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

var interTagSpace = regexp.MustCompile(`>\s+<`)

// spaceless drops whitespace between html tags.
func spaceless(src string) string {
	return strings.TrimSpace(interTagSpace.ReplaceAllString(src, "><"))
}

// sources collects template bodies by name. Later layers override earlier ones.
func sources(dirs []string, withDefaults bool) (map[string]string, error) {
	out := make(map[string]string)

	if withDefaults {
		err := fs.WalkDir(defaultsFS, "defaults", func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			body, err := defaultsFS.ReadFile(p)
			if err != nil {
				return err
			}
			out[strings.TrimPrefix(p, "defaults/")] = string(body)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading embedded templates: %w", err)
		}
	}

	// Configured directories take precedence in list order, so walk them in reverse.
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			body, err := os.ReadFile(p) // #nosec G304 -- operator-configured template dir
			if err != nil {
				return err
			}
			out[filepath.ToSlash(rel)] = string(body)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading templates in %s: %w", dir, err)
		}
	}
	return out, nil
}

func parse(dirs []string, withDefaults bool, collapse bool) (*set, error) {
	srcs, err := sources(dirs, withDefaults)
	if err != nil {
		return nil, err
	}

	s := &set{templates: make(map[string]executor, len(srcs))}
	for name, body := range srcs {
		var (
			t   executor
			err error
		)
		switch path.Ext(name) {
		case ".html", ".htm":
			if collapse {
				body = spaceless(body)
			}
			t, err = htmltemplate.New(name).Parse(body)
		default:
			t, err = texttemplate.New(name).Parse(body)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		s.templates[name] = t
	}
	return s, nil
}

// Cached parses every template once.
type Cached struct {
	set *set
}

// NewCached parses the templates up front with whitespace collapse for html.
func NewCached(dirs []string, withDefaults bool) (*Cached, error) {
	s, err := parse(dirs, withDefaults, true)
	if err != nil {
		return nil, err
	}
	return &Cached{set: s}, nil
}

// Render executes the named template.
func (c *Cached) Render(w io.Writer, name string, data any) error {
	return c.set.render(w, name, data)
}

// Close is a no-op.
func (c *Cached) Close() error { return nil }
