// Package importer implements the per-entry import pipeline: fetch raw
// metadata, classify it as open or closed, and write normalized rows inside
// one transaction per entry. A bad entry is recorded and skipped; it never
// aborts the batch.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/assetgrabber/assetgrabber/internal/catalog"
	"github.com/assetgrabber/assetgrabber/internal/common"
	"github.com/assetgrabber/assetgrabber/internal/dbx"
	"github.com/assetgrabber/assetgrabber/internal/logging"
	"github.com/assetgrabber/assetgrabber/internal/models"
	"github.com/assetgrabber/assetgrabber/internal/repositories/repomanager"
)

// FileTypeCDN tags every stored artifact; all downloads come from the
// catalog's CDN.
const FileTypeCDN = "remote-cdn"

// updatedLayouts are tried in order against the metadata's textual
// timestamps ("2024-08-01 10:11pm GMT" and friends).
var updatedLayouts = []string{
	"2006-01-02 3:04pm MST",
	"2006-01-02 3:04pm",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// MetadataSource yields raw metadata per slug; satisfied by the catalog
// client.
type MetadataSource interface {
	EntryMetadata(ctx context.Context, slug string) (map[string]any, error)
}

// Report aggregates a batch run. It is the pipeline's only output; no
// entry-level error escapes ImportAll.
type Report struct {
	Imported int
	Skipped  int
	Failed   int
}

// Pipeline writes catalog entries through the repositories, one
// transaction per candidate.
type Pipeline struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	log   logging.Logger

	// now stamps pulled_at for live imports; tests may replace it.
	now func() time.Time
}

func New(db *sql.DB, repos repomanager.RepositoryManager, log logging.Logger) *Pipeline {
	return &Pipeline{db: db, repos: repos, log: log, now: time.Now}
}

// ImportAll fetches and imports every candidate in deterministic order.
// Each candidate runs in its own transaction; failures are counted and
// logged, never propagated.
func (p *Pipeline) ImportAll(ctx context.Context, candidates map[string][]string, source MetadataSource) Report {
	slugs := make([]string, 0, len(candidates))
	for slug := range candidates {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var report Report
	for _, slug := range slugs {
		meta, err := source.EntryMetadata(ctx, slug)
		if err != nil {
			p.log.Error(ctx, "metadata fetch failed", "slug", slug, "err", err)
			report.Failed++
			continue
		}
		report.Observe(ctx, p.log, slug, p.Import(ctx, meta, p.now()))
	}
	return report
}

// Observe folds one entry outcome into the report. Callers that drive
// Import directly (the import-meta command) use it too.
func (r *Report) Observe(ctx context.Context, log logging.Logger, slug string, err error) {
	switch {
	case err == nil:
		r.Imported++
	case errors.Is(err, common.ErrDuplicate):
		log.Info(ctx, "skipping entry, already imported", "slug", slug)
		r.Skipped++
	default:
		log.Error(ctx, "entry import failed", "slug", slug, "err", err)
		r.Failed++
	}
}

// Import writes one entry from raw metadata inside its own transaction.
// It returns nil on success, ErrDuplicate when the slug is already stored
// (the empty transaction is rolled back), and a wrapped ErrValidation or
// ErrPersistence otherwise.
func (p *Pipeline) Import(ctx context.Context, meta map[string]any, pulledAt time.Time) error {
	slug, _ := meta["slug"].(string)
	if slug == "" {
		return fmt.Errorf("%w: missing slug", common.ErrValidation)
	}

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entriesRepo := p.repos.Entries(tx)

		exists, err := entriesRepo.ExistsBySlug(ctx, slug)
		if err != nil {
			return fmt.Errorf("%w: existence check for %q: %v", common.ErrPersistence, slug, err)
		}
		if exists {
			return common.ErrDuplicate
		}

		if marker, ok := meta["error"].(string); ok {
			return p.importClosed(ctx, tx, slug, marker, meta, pulledAt)
		}
		return p.importOpen(ctx, tx, slug, meta, pulledAt)
	})
}

// importClosed writes a single closed entry row. Only the exact "closed"
// marker is importable; any other error code fails the entry.
func (p *Pipeline) importClosed(ctx context.Context, tx dbx.DBTX, slug, marker string, meta map[string]any, pulledAt time.Time) error {
	if marker != models.StatusClosed {
		return fmt.Errorf("%w: unexpected error marker %q for %q", common.ErrValidation, marker, slug)
	}

	closedAt := p.now()
	if raw, ok := meta["closed_date"].(string); ok && raw != "" {
		if parsed, err := parseUpdated(raw); err == nil {
			closedAt = parsed
		}
	}

	name, _ := meta["name"].(string)
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}

	p.log.Info(ctx, "writing closed entry", "slug", slug)
	entry := &models.Entry{
		ID:       id.String(),
		Name:     name,
		Slug:     slug,
		Status:   marker,
		Updated:  &closedAt,
		PulledAt: pulledAt,
	}
	if err := p.repos.Entries(tx).Create(ctx, entry); err != nil {
		return fmt.Errorf("%w: write closed entry %q: %v", common.ErrPersistence, slug, err)
	}
	return nil
}

// importOpen writes one open entry row plus one file row per version.
func (p *Pipeline) importOpen(ctx context.Context, tx dbx.DBTX, slug string, meta map[string]any, pulledAt time.Time) error {
	name, _ := meta["name"].(string)
	version, _ := meta["version"].(string)
	if name == "" || version == "" {
		return fmt.Errorf("%w: entry %q missing name or version", common.ErrValidation, slug)
	}

	rawUpdated, _ := meta["last_updated"].(string)
	updated, err := parseUpdated(rawUpdated)
	if err != nil {
		return fmt.Errorf("%w: entry %q last_updated %q: %v", common.ErrValidation, slug, rawUpdated, err)
	}

	versions := catalog.VersionsFor(meta)
	if len(versions) == 0 {
		return fmt.Errorf("%w: entry %q has no importable versions", common.ErrValidation, slug)
	}

	entryID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}

	p.log.Info(ctx, "writing open entry", "slug", slug, "versions", len(versions))
	entry := &models.Entry{
		ID:             entryID.String(),
		Name:           name,
		Slug:           slug,
		CurrentVersion: &version,
		Status:         models.StatusOpen,
		Updated:        &updated,
		PulledAt:       pulledAt,
	}
	if err := p.repos.Entries(tx).Create(ctx, entry); err != nil {
		return fmt.Errorf("%w: write open entry %q: %v", common.ErrPersistence, slug, err)
	}

	filesRepo := p.repos.EntryFiles(tx)
	// deterministic write order
	labels := make([]string, 0, len(versions))
	for label := range versions {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		fileID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		file := &models.EntryFile{
			ID:      fileID.String(),
			EntryID: entry.ID,
			FileURL: versions[label],
			Type:    FileTypeCDN,
			Version: label,
		}
		if err := filesRepo.Create(ctx, file); err != nil {
			return fmt.Errorf("%w: write file %q of %q: %v", common.ErrPersistence, label, slug, err)
		}
	}
	return nil
}

func parseUpdated(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var lastErr error
	for _, layout := range updatedLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
