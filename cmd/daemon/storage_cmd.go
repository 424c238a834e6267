// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/daemon"
	"github.com/ManuGH/sitekit/internal/staticfiles"
	"github.com/ManuGH/sitekit/internal/storage"
)

func runMigrate(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	db, err := storage.Open(ctx, daemon.DatabaseConfig(cfg), storage.DefaultPool())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	applied, err := storage.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		fmt.Fprintln(stdout, "No migrations to apply.")
		return nil
	}
	fmt.Fprintf(stdout, "Applied migrations: %s\n", strings.Join(applied, ", "))
	return nil
}

func runCollectStatic(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	res, err := staticfiles.Collect(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("collectstatic: %w", err)
	}
	fmt.Fprintf(stdout, "%d static files copied to '%s'", res.Copied, cfg.Storage.StaticRoot)
	if res.Manifest != nil {
		fmt.Fprintf(stdout, ", %d post-processed", len(res.Manifest.Paths))
	}
	fmt.Fprintln(stdout, ".")
	return nil
}
