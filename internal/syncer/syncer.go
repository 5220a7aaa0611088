// Package syncer implements the revision-tracked synchronization engine:
// given a named sync action, it decides which catalog entries need
// (re-)import by pulling the whole listing on a cold start or diffing the
// changelog against the persisted revision ledger, then merging the result
// with the baseline snapshot and the caller's allow-list.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/assetgrabber/assetgrabber/internal/cache"
	"github.com/assetgrabber/assetgrabber/internal/common"
	"github.com/assetgrabber/assetgrabber/internal/logging"
	"github.com/assetgrabber/assetgrabber/internal/models"
	"github.com/assetgrabber/assetgrabber/internal/repositories/revisions"
)

// baselineKey is where the merged snapshot of all known slugs lives in the
// raw store.
const baselineKey = "plugin-data.json"

// CatalogSource is the engine's view of the remote catalog.
type CatalogSource interface {
	FullListing(ctx context.Context) ([]string, error)
	ChangeLog(ctx context.Context, lastRevision int) (string, error)
	HeadRevision(ctx context.Context, force bool) (int, error)
}

// baseline is the persisted snapshot of previously seen slugs; read-only
// input to the engine.
type baseline struct {
	Meta struct {
		MyRevision int `json:"my_revision"`
	} `json:"meta"`
	Plugins map[string][]string `json:"plugins"`
}

// Engine owns the revision ledger. It is not safe for concurrent use;
// callers serialize runs per action.
type Engine struct {
	catalog CatalogSource
	ledger  revisions.Repository
	store   cache.Store
	log     logging.Logger

	// revisionData mirrors the ledger table, loaded once at construction.
	revisionData map[string]*models.Revision
	// observed holds revisions produced by successful remote queries in
	// this run, pending RecordRevision.
	observed map[string]int
	// current is the repository head marker set by IdentifyCurrentRevision.
	current  int
	baseline baseline
}

// New loads the revision ledger and the baseline snapshot and returns an
// engine ready to compute candidates.
func New(ctx context.Context, catalog CatalogSource, ledger revisions.Repository, store cache.Store, log logging.Logger) (*Engine, error) {
	e := &Engine{
		catalog:      catalog,
		ledger:       ledger,
		store:        store,
		log:          log,
		revisionData: map[string]*models.Revision{},
		observed:     map[string]int{},
	}
	e.baseline.Plugins = map[string][]string{}

	recs, err := ledger.SelectAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load revision ledger: %w", err)
	}
	for _, rec := range recs {
		e.revisionData[rec.Action] = rec
	}

	if err := e.loadBaseline(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadBaseline() error {
	data, _, err := e.store.Get(baselineKey)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	if err := json.Unmarshal(data, &e.baseline); err != nil {
		return fmt.Errorf("decode baseline: %w", err)
	}
	if e.baseline.Plugins == nil {
		e.baseline.Plugins = map[string][]string{}
	}
	return nil
}

// IdentifyCurrentRevision queries the repository head and keeps it as the
// engine's current-revision marker. force bypasses the cached changelog.
func (e *Engine) IdentifyCurrentRevision(ctx context.Context, force bool) (int, error) {
	rev, err := e.catalog.HeadRevision(ctx, force)
	if err != nil {
		return 0, err
	}
	e.current = rev
	return rev, nil
}

// ListCandidates returns the slugs requiring (re-)import for action, each
// mapped to its known versions (always empty in this design). With no
// ledger entry for the action it cold-pulls the full listing; otherwise it
// diffs the changelog since the last recorded revision and merges against
// the baseline snapshot and the allow-list.
func (e *Engine) ListCandidates(ctx context.Context, action string, filter []string) (map[string][]string, error) {
	if rec, ok := e.revisionData[action]; ok {
		return e.changedSince(ctx, action, rec.Revision, filter)
	}

	slugs, err := e.catalog.FullListing(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(slugs))
	for _, slug := range slugs {
		out[slug] = []string{}
	}
	if e.current > 0 {
		// First watermark for the action comes from the head marker, so
		// the next run can take the warm path.
		e.observed[action] = e.current
	}
	e.log.Info(ctx, "cold pull", "action", action, "entries", len(out))
	return Filter(out, filter), nil
}

func (e *Engine) changedSince(ctx context.Context, action string, last int, filter []string) (map[string][]string, error) {
	// No-op fast path: the head marker already matches the baseline
	// revision, so the remote diff is skipped entirely. No revision is
	// observed here; RecordRevision after this path is an error.
	if e.current != 0 && e.current == e.baseline.Meta.MyRevision {
		e.log.Info(ctx, "changelog unchanged, skipping diff", "action", action, "revision", e.current)
		merged, err := e.merge(ctx, nil, filter)
		if err != nil {
			return nil, err
		}
		return Filter(merged, filter), nil
	}

	raw, err := e.catalog.ChangeLog(ctx, last)
	if err != nil {
		return nil, err
	}

	touched, maxRevision := parseChangeLog(raw)
	out := make(map[string][]string, len(touched))
	for slug := range touched {
		out[slug] = []string{}
	}
	if maxRevision < last {
		maxRevision = last
	}
	e.observed[action] = maxRevision
	e.log.Info(ctx, "warm diff", "action", action, "from", last, "to", maxRevision, "touched", len(out))

	merged, err := e.merge(ctx, out, filter)
	if err != nil {
		return nil, err
	}
	return Filter(merged, filter), nil
}

// merge folds the full listing into the diffed candidates: slugs absent
// from the baseline snapshot are first-timers and always candidates, and
// explicitly requested slugs are candidates regardless of diff or baseline
// state.
func (e *Engine) merge(ctx context.Context, candidates map[string][]string, requested []string) (map[string][]string, error) {
	if candidates == nil {
		candidates = map[string][]string{}
	}

	all, err := e.catalog.FullListing(ctx)
	if err != nil {
		return nil, err
	}
	for _, slug := range all {
		if _, known := e.baseline.Plugins[slug]; !known {
			candidates[slug] = []string{}
		}
	}
	for _, slug := range requested {
		candidates[slug] = []string{}
	}
	return candidates, nil
}

// Filter reduces candidates to the allow-list. An empty or nil allow-list
// returns the input unchanged.
func Filter(candidates map[string][]string, allowList []string) map[string][]string {
	if len(allowList) == 0 {
		return candidates
	}
	filtered := make(map[string][]string, len(allowList))
	for _, slug := range allowList {
		if versions, ok := candidates[slug]; ok {
			filtered[slug] = versions
		}
	}
	return filtered
}

// Observed returns the revision produced by this run's last successful
// remote query for action, if any.
func (e *Engine) Observed(action string) (int, bool) {
	rev, ok := e.observed[action]
	return rev, ok
}

// RecordRevision persists the action's observed revision into the ledger:
// insert when the action has no record yet, update by id otherwise. Ledger
// revisions never go backwards; an observed revision at or below the
// recorded one is a no-op. Calling this without a prior successful remote
// query for the action is an error.
func (e *Engine) RecordRevision(ctx context.Context, action string) error {
	rev, ok := e.observed[action]
	if !ok {
		return fmt.Errorf("no revision observed for action %q", action)
	}

	if rec, exists := e.revisionData[action]; exists {
		if rev <= rec.Revision {
			e.log.Debug(ctx, "ledger already at or past revision", "action", action, "revision", rec.Revision)
			return nil
		}
		if err := e.ledger.Update(ctx, rec.ID, rev); err != nil {
			return fmt.Errorf("%w: update revision for %q: %v", common.ErrPersistence, action, err)
		}
		rec.Revision = rev
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	rec := &models.Revision{ID: id.String(), Action: action, Revision: rev}
	if err := e.ledger.Insert(ctx, rec); err != nil {
		return fmt.Errorf("%w: insert revision for %q: %v", common.ErrPersistence, action, err)
	}
	e.revisionData[action] = rec
	return nil
}

// PreserveBaseline writes the merged snapshot of known slugs plus this
// run's candidates back to the raw store, stamped with the current head
// marker. The in-memory baseline itself is never mutated mid-run.
func (e *Engine) PreserveBaseline(candidates map[string][]string) error {
	doc := baseline{}
	doc.Meta.MyRevision = e.current
	doc.Plugins = make(map[string][]string, len(e.baseline.Plugins)+len(candidates))
	for slug, versions := range e.baseline.Plugins {
		doc.Plugins[slug] = versions
	}
	for slug, versions := range candidates {
		doc.Plugins[slug] = versions
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := e.store.Put(baselineKey, data); err != nil {
		return fmt.Errorf("preserve baseline: %w", err)
	}
	return nil
}
