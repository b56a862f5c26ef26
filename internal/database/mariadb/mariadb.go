// Package mariadb stores match events and watchlist identities in MariaDB or MySQL.
// Face embeddings are not stored, so similarity search is unavailable.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/facewatch/internal/config"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// schema is applied on open; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		image_key   VARCHAR(1024) NOT NULL,
		added_at    DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS match_events (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		label       VARCHAR(255) NOT NULL,
		image_ref   VARCHAR(1024) NOT NULL DEFAULT '',
		confidence  DOUBLE NOT NULL DEFAULT 0,
		channel     VARCHAR(32) NOT NULL,
		watchlisted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  DATETIME(6) NOT NULL,
		INDEX idx_match_events_created (created_at, id),
		INDEX idx_match_events_label (label)
	)`,
}

// withParseTime forces parseTime=true and UTC so DATETIME columns scan into time.Time.
func withParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := withParseTime(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Open connects to MariaDB and ensures the schema exists.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return pool, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
