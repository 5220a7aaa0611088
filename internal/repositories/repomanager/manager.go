package repomanager

import (
	"context"
	"database/sql"

	"github.com/assetgrabber/assetgrabber/internal/dbx"
	"github.com/assetgrabber/assetgrabber/internal/repositories/entries"
	"github.com/assetgrabber/assetgrabber/internal/repositories/entryfiles"
	"github.com/assetgrabber/assetgrabber/internal/repositories/revisions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entries(db dbx.DBTX) entries.Repository
	EntryFiles(db dbx.DBTX) entryfiles.Repository
	Revisions(db dbx.DBTX) revisions.Repository
}
