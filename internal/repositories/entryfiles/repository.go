package entryfiles

import (
	"context"

	"github.com/assetgrabber/assetgrabber/internal/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.EntryFile) error
}
