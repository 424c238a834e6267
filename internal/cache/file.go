// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// FileCache persists entries in a badger directory so they survive restarts.
type FileCache struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  counters
}

// NewFileCache opens (or creates) a badger store at dir.
func NewFileCache(dir string, logger zerolog.Logger) (Cache, error) {
	if dir == "" {
		return nil, errors.New("file cache requires a directory")
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open file cache %s: %w", dir, err)
	}
	logger.Info().Str("dir", dir).Msg("opened file cache")
	return &FileCache{db: db, logger: logger}, nil
}

// Get retrieves a value; badger drops expired entries on read.
func (c *FileCache) Get(key string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("file cache get failed")
		}
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return out, true
}

// Set stores a value. A non-positive ttl never expires.
func (c *FileCache) Set(key string, value []byte, ttl time.Duration) {
	e := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	}); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("file cache set failed")
		return
	}
	c.stats.sets.Add(1)
}

// Delete removes a value.
func (c *FileCache) Delete(key string) {
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("file cache delete failed")
	}
}

// Clear drops every entry.
func (c *FileCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.logger.Warn().Err(err).Msg("file cache clear failed")
	}
}

// Stats counts live keys with a key-only iteration.
func (c *FileCache) Stats() CacheStats {
	size := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if !it.Item().IsDeletedOrExpired() {
				size++
			}
		}
		return nil
	})
	return c.stats.snapshot(size)
}

// Close flushes and closes the store.
func (c *FileCache) Close() error {
	return c.db.Close()
}

// HealthCheck reports whether the store is still open.
func (c *FileCache) HealthCheck(_ context.Context) error {
	if c.db.IsClosed() {
		return errors.New("file cache closed")
	}
	return nil
}
