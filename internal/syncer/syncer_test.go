package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assetgrabber/assetgrabber/internal/cache"
	"github.com/assetgrabber/assetgrabber/internal/common"
	"github.com/assetgrabber/assetgrabber/internal/logging"
	"github.com/assetgrabber/assetgrabber/internal/models"
)

type fakeCatalog struct {
	listing      []string
	listingErr   error
	changeLog    string
	changeLogErr error
	head         int
	headErr      error

	listingCalls  int
	changeLogFrom []int
}

func (f *fakeCatalog) FullListing(ctx context.Context) ([]string, error) {
	f.listingCalls++
	return f.listing, f.listingErr
}

func (f *fakeCatalog) ChangeLog(ctx context.Context, lastRevision int) (string, error) {
	f.changeLogFrom = append(f.changeLogFrom, lastRevision)
	return f.changeLog, f.changeLogErr
}

func (f *fakeCatalog) HeadRevision(ctx context.Context, force bool) (int, error) {
	return f.head, f.headErr
}

type fakeLedger struct {
	rows      []*models.Revision
	selectErr error
	insertErr error
	updateErr error

	inserted []*models.Revision
	updated  map[string]int
}

func (f *fakeLedger) SelectAll(ctx context.Context) ([]*models.Revision, error) {
	return f.rows, f.selectErr
}

func (f *fakeLedger) Insert(ctx context.Context, rev *models.Revision) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, rev)
	return nil
}

func (f *fakeLedger) Update(ctx context.Context, id string, revision int) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = map[string]int{}
	}
	f.updated[id] = revision
	return nil
}

func putBaseline(t *testing.T, store *cache.Memory, revision int, slugs ...string) {
	t.Helper()
	doc := baseline{}
	doc.Meta.MyRevision = revision
	doc.Plugins = map[string][]string{}
	for _, s := range slugs {
		doc.Plugins[s] = []string{}
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, store.Put("plugin-data.json", data))
}

func newEngine(t *testing.T, catalog *fakeCatalog, ledger *fakeLedger, store *cache.Memory) *Engine {
	t.Helper()
	if store == nil {
		store = cache.NewMemory()
	}
	e, err := New(context.Background(), catalog, ledger, store, logging.New(""))
	require.NoError(t, err)
	return e
}

func TestListCandidates_ColdPullReturnsFullListing(t *testing.T) {
	catalog := &fakeCatalog{listing: []string{"akismet", "hello-dolly", "wp-super-cache"}}
	e := newEngine(t, catalog, &fakeLedger{}, nil)

	got, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{
		"akismet":        {},
		"hello-dolly":    {},
		"wp-super-cache": {},
	}, got)
	require.Empty(t, catalog.changeLogFrom, "cold pull must not query the changelog")
}

func TestListCandidates_ColdPullAppliesFilter(t *testing.T) {
	catalog := &fakeCatalog{listing: []string{"akismet", "hello-dolly"}}
	e := newEngine(t, catalog, &fakeLedger{}, nil)

	got, err := e.ListCandidates(context.Background(), "meta:import", []string{"akismet"})
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"akismet": {}}, got)
}

func TestListCandidates_ColdPullFailure(t *testing.T) {
	catalog := &fakeCatalog{listingErr: common.ErrRemoteQuery}
	e := newEngine(t, catalog, &fakeLedger{}, nil)

	_, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.True(t, errors.Is(err, common.ErrRemoteQuery))
}

func TestListCandidates_WarmDiffStartsFromLedgerRevision(t *testing.T) {
	catalog := &fakeCatalog{
		listing: []string{"akismet", "hello-dolly"},
		changeLog: `r3100001 | a | date
Changed paths:
   M /akismet/trunk/akismet.php
`,
	}
	ledger := &fakeLedger{rows: []*models.Revision{{ID: "r1", Action: "meta:import", Revision: 3100000}}}
	store := cache.NewMemory()
	putBaseline(t, store, 3100000, "akismet", "hello-dolly")
	e := newEngine(t, catalog, ledger, store)

	got, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.NoError(t, err)
	require.Equal(t, []int{3100000}, catalog.changeLogFrom, "diff must start at the ledger revision, never zero")
	require.Contains(t, got, "akismet")
	require.NotContains(t, got, "hello-dolly", "baseline-known untouched slug is not a candidate")

	rev, ok := e.Observed("meta:import")
	require.True(t, ok)
	require.Equal(t, 3100001, rev)
}

func TestListCandidates_WarmDiffIncludesBaselineNewSlugs(t *testing.T) {
	catalog := &fakeCatalog{
		listing:   []string{"akismet", "brand-new"},
		changeLog: "r5 | a | d\n",
	}
	ledger := &fakeLedger{rows: []*models.Revision{{ID: "r1", Action: "meta:import", Revision: 4}}}
	store := cache.NewMemory()
	putBaseline(t, store, 4, "akismet")
	e := newEngine(t, catalog, ledger, store)

	got, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.NoError(t, err)
	require.Contains(t, got, "brand-new")
	require.NotContains(t, got, "akismet")
}

func TestListCandidates_WarmDiffFailureIsTotal(t *testing.T) {
	catalog := &fakeCatalog{changeLogErr: common.ErrRemoteQuery}
	ledger := &fakeLedger{rows: []*models.Revision{{ID: "r1", Action: "meta:import", Revision: 10}}}
	e := newEngine(t, catalog, ledger, nil)

	_, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.True(t, errors.Is(err, common.ErrRemoteQuery))
	_, ok := e.Observed("meta:import")
	require.False(t, ok, "failed diff must not observe a revision")
}

func TestListCandidates_FastPathSkipsRemoteDiff(t *testing.T) {
	catalog := &fakeCatalog{listing: []string{"akismet"}, head: 3100000}
	ledger := &fakeLedger{rows: []*models.Revision{{ID: "r1", Action: "meta:import", Revision: 3100000}}}
	store := cache.NewMemory()
	putBaseline(t, store, 3100000, "akismet")
	e := newEngine(t, catalog, ledger, store)

	_, err := e.IdentifyCurrentRevision(context.Background(), false)
	require.NoError(t, err)

	got, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, catalog.changeLogFrom, "fast path must skip the changelog query")

	// no revision derives from the fast path, so recording is an error
	require.Error(t, e.RecordRevision(context.Background(), "meta:import"))
}

func TestListCandidates_ExplicitFilterAlwaysHonored(t *testing.T) {
	// baseline = {"akismet"}, diff = {}, filter = ["akismet"] -> {"akismet": []}
	catalog := &fakeCatalog{listing: []string{"akismet"}, head: 3100000}
	ledger := &fakeLedger{rows: []*models.Revision{{ID: "r1", Action: "meta:import", Revision: 3100000}}}
	store := cache.NewMemory()
	putBaseline(t, store, 3100000, "akismet")
	e := newEngine(t, catalog, ledger, store)

	_, err := e.IdentifyCurrentRevision(context.Background(), false)
	require.NoError(t, err)

	got, err := e.ListCandidates(context.Background(), "meta:import", []string{"akismet"})
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"akismet": {}}, got)
}

func TestFilter(t *testing.T) {
	in := map[string][]string{"a": {}, "b": {"1.0"}}

	require.Equal(t, in, Filter(in, nil))
	require.Equal(t, in, Filter(in, []string{}))
	require.Equal(t, map[string][]string{"b": {"1.0"}}, Filter(in, []string{"b", "missing"}))
}

func TestRecordRevision_InsertsFirstRecord(t *testing.T) {
	catalog := &fakeCatalog{listing: []string{"akismet"}, head: 42}
	ledger := &fakeLedger{}
	e := newEngine(t, catalog, ledger, nil)

	_, err := e.IdentifyCurrentRevision(context.Background(), false)
	require.NoError(t, err)
	_, err = e.ListCandidates(context.Background(), "meta:import", nil)
	require.NoError(t, err)

	require.NoError(t, e.RecordRevision(context.Background(), "meta:import"))
	require.Len(t, ledger.inserted, 1)
	require.Equal(t, "meta:import", ledger.inserted[0].Action)
	require.Equal(t, 42, ledger.inserted[0].Revision)
	require.NotEmpty(t, ledger.inserted[0].ID)
}

func TestRecordRevision_UpdatesExistingByID(t *testing.T) {
	catalog := &fakeCatalog{
		listing:   []string{"akismet"},
		changeLog: "r50 | a | d\nChanged paths:\n   M /akismet/trunk/x.php\n",
	}
	ledger := &fakeLedger{rows: []*models.Revision{{ID: "r1", Action: "meta:import", Revision: 40}}}
	store := cache.NewMemory()
	putBaseline(t, store, 40, "akismet")
	e := newEngine(t, catalog, ledger, store)

	_, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.NoError(t, err)

	require.NoError(t, e.RecordRevision(context.Background(), "meta:import"))
	require.Empty(t, ledger.inserted)
	require.Equal(t, map[string]int{"r1": 50}, ledger.updated)

	// recording again at the same revision is a no-op
	require.NoError(t, e.RecordRevision(context.Background(), "meta:import"))
	require.Equal(t, map[string]int{"r1": 50}, ledger.updated)
}

func TestRecordRevision_NeverDecreases(t *testing.T) {
	catalog := &fakeCatalog{
		listing:   []string{"akismet"},
		changeLog: "no revision lines here\n",
	}
	ledger := &fakeLedger{rows: []*models.Revision{{ID: "r1", Action: "meta:import", Revision: 40}}}
	store := cache.NewMemory()
	putBaseline(t, store, 40, "akismet")
	e := newEngine(t, catalog, ledger, store)

	_, err := e.ListCandidates(context.Background(), "meta:import", nil)
	require.NoError(t, err)

	// an empty diff window observes the ledger revision, not zero
	rev, ok := e.Observed("meta:import")
	require.True(t, ok)
	require.Equal(t, 40, rev)

	require.NoError(t, e.RecordRevision(context.Background(), "meta:import"))
	require.Empty(t, ledger.updated)
	require.Empty(t, ledger.inserted)
}

func TestPreserveBaseline_MergesAndStamps(t *testing.T) {
	catalog := &fakeCatalog{listing: []string{"akismet", "brand-new"}, head: 77}
	ledger := &fakeLedger{}
	store := cache.NewMemory()
	putBaseline(t, store, 60, "akismet")
	e := newEngine(t, catalog, ledger, store)

	_, err := e.IdentifyCurrentRevision(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, e.PreserveBaseline(map[string][]string{"brand-new": {}}))

	data, _, err := store.Get("plugin-data.json")
	require.NoError(t, err)
	var doc baseline
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 77, doc.Meta.MyRevision)
	require.Contains(t, doc.Plugins, "akismet")
	require.Contains(t, doc.Plugins, "brand-new")
}
