// Package entries provides the PostgreSQL-backed store for catalog entries.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/assetgrabber/assetgrabber/internal/dbx"
	"github.com/assetgrabber/assetgrabber/internal/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ExistsBySlug reports whether an entry with the given slug is already
// stored. The importer checks this before every insert so a duplicate is
// a skip, not a constraint violation.
func (r *PostgresRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	query := `SELECT id FROM entries WHERE slug = $1`
	var id string
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// Create inserts one entry row. Closed entries carry a nil current_version.
func (r *PostgresRepository) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (id, name, slug, current_version, status, updated, pulled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Name, entry.Slug, entry.CurrentVersion, entry.Status, entry.Updated, entry.PulledAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
