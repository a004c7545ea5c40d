package framestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// Schema creates the frame catalog table.
const Schema = `
	CREATE TABLE IF NOT EXISTS frame_catalogs (
		id           UUID PRIMARY KEY,
		generated_at TIMESTAMPTZ,
		fetched_at   TIMESTAMPTZ NOT NULL,
		payload      JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS frame_catalogs_fetched_at_idx ON frame_catalogs (fetched_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL frame store.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the frame catalog table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create frame_catalogs: %w", err)
	}
	return nil
}

// Save stores a catalog.
func (r *PostgresRepository) Save(ctx context.Context, catalog *layers.Catalog) error {
	stored := FromCatalog(catalog)

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	query := `
		INSERT INTO frame_catalogs (id, generated_at, fetched_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			fetched_at = EXCLUDED.fetched_at,
			payload = EXCLUDED.payload
	`

	var generatedAt *time.Time
	if !stored.GeneratedAt.IsZero() {
		generatedAt = &stored.GeneratedAt
	}

	if _, err := r.pool.Exec(ctx, query, stored.ID, generatedAt, stored.FetchedAt, payload); err != nil {
		return fmt.Errorf("insert catalog: %w", err)
	}
	return nil
}

// Latest returns the most recently fetched catalog.
func (r *PostgresRepository) Latest(ctx context.Context) (*StoredCatalog, error) {
	query := `
		SELECT payload
		FROM frame_catalogs
		ORDER BY fetched_at DESC
		LIMIT 1
	`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCatalogNotFound
		}
		return nil, err
	}

	var stored StoredCatalog
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return &stored, nil
}

// Prune deletes all but the keep most recent catalogs.
func (r *PostgresRepository) Prune(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM frame_catalogs
		WHERE id NOT IN (
			SELECT id FROM frame_catalogs ORDER BY fetched_at DESC LIMIT $1
		)
	`

	tag, err := r.pool.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune catalogs: %w", err)
	}
	return tag.RowsAffected(), nil
}
