// Package revisions provides the PostgreSQL-backed revision ledger: one row
// per sync action holding the last successfully processed repository
// revision.
package revisions

import (
	"context"
	"fmt"

	"github.com/assetgrabber/assetgrabber/internal/dbx"
	"github.com/assetgrabber/assetgrabber/internal/models"
)

// PostgresRepository implements ledger storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SelectAll returns every ledger row. The sync engine loads these once at
// construction.
func (r *PostgresRepository) SelectAll(ctx context.Context) ([]*models.Revision, error) {
	query := `SELECT id, action, revision FROM revisions`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select revisions: %w", err)
	}
	defer rows.Close()

	var result []*models.Revision
	for rows.Next() {
		var item models.Revision
		if err := rows.Scan(&item.ID, &item.Action, &item.Revision); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Insert creates the first ledger row for an action.
func (r *PostgresRepository) Insert(ctx context.Context, rev *models.Revision) error {
	query := `INSERT INTO revisions (id, action, revision) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, rev.ID, rev.Action, rev.Revision); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update advances an existing ledger row by id.
func (r *PostgresRepository) Update(ctx context.Context, id string, revision int) error {
	query := `UPDATE revisions SET revision = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, revision, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}
