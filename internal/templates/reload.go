// SPDX-License-Identifier: MIT

package templates

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 100 * time.Millisecond

// HotReload reparses the templates whenever a file in the watched
// directories changes. A failed reparse keeps the previous set.
type HotReload struct {
	dirs         []string
	withDefaults bool
	logger       zerolog.Logger

	current atomic.Pointer[set]
	reloads atomic.Int64

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewHotReload parses the templates and starts watching dirs.
func NewHotReload(dirs []string, withDefaults bool, logger zerolog.Logger) (*HotReload, error) {
	s, err := parse(dirs, withDefaults, false)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("dir", dir).Msg("template directory missing; not watched")
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("watch template directory %s: %w", dir, err)
		}
	}

	h := &HotReload{
		dirs:         dirs,
		withDefaults: withDefaults,
		logger:       logger,
		watcher:      watcher,
		done:         make(chan struct{}),
	}
	h.current.Store(s)
	go h.run()
	return h, nil
}

// Render executes the named template from the latest successful parse.
func (h *HotReload) Render(w io.Writer, name string, data any) error {
	return h.current.Load().render(w, name, data)
}

// Reloads reports how many reparses succeeded.
func (h *HotReload) Reloads() int64 {
	return h.reloads.Load()
}

// Close stops the watcher and waits for the reload loop to exit.
func (h *HotReload) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.watcher.Close()
		<-h.done
	})
	return err
}

func (h *HotReload) run() {
	defer close(h.done)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			// Editors emit bursts of events per save.
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			h.reload()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

func (h *HotReload) reload() {
	s, err := parse(h.dirs, h.withDefaults, false)
	if err != nil {
		h.logger.Error().Err(err).Msg("template reload failed; keeping previous templates")
		return
	}
	h.current.Store(s)
	h.reloads.Add(1)
	h.logger.Debug().Int("templates", len(s.templates)).Msg("templates reloaded")
}
