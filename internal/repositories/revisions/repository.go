package revisions

import (
	"context"

	"github.com/assetgrabber/assetgrabber/internal/models"
)

type Repository interface {
	SelectAll(ctx context.Context) ([]*models.Revision, error)
	Insert(ctx context.Context, rev *models.Revision) error
	Update(ctx context.Context, id string, revision int) error
}
