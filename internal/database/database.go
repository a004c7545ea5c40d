// Package database opens the PostgreSQL pool behind the frame store.
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidConfig is returned when pool limits are inconsistent.
var ErrInvalidConfig = errors.New("invalid database config")

// Config describes the database and the pool opened against it.
type Config struct {
	// URL is a full connection string. It takes precedence over the
	// discrete fields.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
}

// Defaults returns settings for a local development database. The frame
// store is small, so the pool is too.
func Defaults() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "wxoverlay",
		Password:        "localdev",
		Name:            "wxoverlay",
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
	}
}

// Validate checks the pool limits.
func (c Config) Validate() error {
	switch {
	case c.MaxConns <= 0:
		return fmt.Errorf("%w: max conns must be positive", ErrInvalidConfig)
	case c.MinConns < 0 || c.MinConns > c.MaxConns:
		return fmt.Errorf("%w: min conns must be between 0 and %d", ErrInvalidConfig, c.MaxConns)
	}
	return nil
}

// DSN returns the connection string.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}).String()
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	pc.MaxConns = int32(cfg.MaxConns) //nolint:gosec // bounded by Validate
	pc.MinConns = int32(cfg.MinConns) //nolint:gosec // bounded by Validate
	pc.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Target names the server and database a pool is connected to, without
// credentials.
func Target(pool *pgxpool.Pool) string {
	cc := pool.Config().ConnConfig
	return fmt.Sprintf("%s/%s", net.JoinHostPort(cc.Host, strconv.Itoa(int(cc.Port))), cc.Database)
}
