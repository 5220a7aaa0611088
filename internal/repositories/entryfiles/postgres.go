// Package entryfiles provides the PostgreSQL-backed store for per-version
// artifacts of open catalog entries.
package entryfiles

import (
	"context"
	"fmt"

	"github.com/assetgrabber/assetgrabber/internal/dbx"
	"github.com/assetgrabber/assetgrabber/internal/models"
)

// PostgresRepository implements artifact storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one file row. Rows reference an entry created in the same
// transaction.
func (r *PostgresRepository) Create(ctx context.Context, file *models.EntryFile) error {
	query := `
		INSERT INTO entry_files (id, entry_id, file_url, type, version)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.EntryID, file.FileURL, file.Type, file.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
