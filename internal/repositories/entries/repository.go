package entries

import (
	"context"

	"github.com/assetgrabber/assetgrabber/internal/models"
)

type Repository interface {
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, entry *models.Entry) error
}
