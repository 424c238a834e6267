// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storage opens the site database and owns its schema.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // Pure Go driver
)

// Pool holds connection pool parameters.
type Pool struct {
	BusyTimeout     time.Duration // sqlite only
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPool returns the pool settings used by the daemon.
func DefaultPool() Pool {
	return Pool{
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    25,
		ConnMaxLifetime: time.Hour,
	}
}

// DB is a database handle tagged with its engine.
type DB struct {
	*sql.DB
	Engine config.DatabaseEngine
}

// Open connects to the configured engine, applies the pool settings and pings.
func Open(ctx context.Context, cfg config.DatabaseConfig, pool Pool) (*DB, error) {
	var (
		driver string
		dsn    string
	)
	switch cfg.Engine {
	case config.EngineMySQL:
		driver, dsn = "mysql", MySQLDSN(cfg)
	case config.EngineSQLite:
		driver, dsn = "sqlite", SQLiteDSN(cfg.Name, pool.BusyTimeout)
	default:
		return nil, fmt.Errorf("storage: unsupported engine %q", cfg.Engine)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s failed: %w", cfg.Engine, err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxOpenConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping %s failed: %w", cfg.Engine, err)
	}

	return &DB{DB: db, Engine: cfg.Engine}, nil
}

// MySQLDSN renders the resolved settings as a go-sql-driver DSN.
func MySQLDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// SQLiteDSN applies the mandatory PRAGMAs to every pooled connection.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, busyTimeout.Milliseconds())
}
