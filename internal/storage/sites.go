// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
)

// Site is a row of the sites table.
type Site struct {
	ID     int
	Domain string
	Name   string
}

// DefaultSite is served when the sites table has no row for SITE_ID.
func DefaultSite(id int) Site {
	return Site{ID: id, Domain: "example.com", Name: "sitekit"}
}

// Sites reads and writes the sites table.
type Sites struct {
	db *DB
}

// NewSites creates a sites repository.
func NewSites(db *DB) *Sites {
	return &Sites{db: db}
}

// Current returns the site for id, falling back to DefaultSite.
func (s *Sites) Current(ctx context.Context, id int) (Site, error) {
	site := Site{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT domain, name FROM sites WHERE id = ?`, id).
		Scan(&site.Domain, &site.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSite(id), nil
	}
	if err != nil {
		return Site{}, fmt.Errorf("loading site %d: %w", id, err)
	}
	return site, nil
}

// Save inserts or updates a site.
func (s *Sites) Save(ctx context.Context, site Site) error {
	var q string
	switch s.db.Engine {
	case config.EngineMySQL:
		q = `INSERT INTO sites (id, domain, name, updated_at) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE domain = VALUES(domain), name = VALUES(name), updated_at = VALUES(updated_at)`
	default:
		q = `INSERT INTO sites (id, domain, name, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET domain = excluded.domain, name = excluded.name, updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, q, site.ID, site.Domain, site.Name, time.Now().Unix()); err != nil {
		return fmt.Errorf("saving site %d: %w", site.ID, err)
	}
	return nil
}
