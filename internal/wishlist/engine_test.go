package wishlist

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/streamvault/backend/internal/db"
	"github.com/streamvault/backend/internal/download"
	"github.com/streamvault/backend/internal/metadata"
)

type fakeStore struct {
	entries     []*db.WishlistEntry
	matches     map[int64][]*db.WishlistMatch
	statuses    map[int64][]string
	logs        map[int64][]string
	lastChecked map[int64]int

	recordErr error
}

func newFakeStore(entries ...*db.WishlistEntry) *fakeStore {
	return &fakeStore{
		entries:     entries,
		matches:     make(map[int64][]*db.WishlistMatch),
		statuses:    make(map[int64][]string),
		logs:        make(map[int64][]string),
		lastChecked: make(map[int64]int),
	}
}

func (s *fakeStore) ListWanted(ctx context.Context) ([]*db.WishlistEntry, error) {
	return s.entries, nil
}

func (s *fakeStore) TouchLastCheck(ctx context.Context, id int64) error {
	s.lastChecked[id]++
	return nil
}

func (s *fakeStore) RecordMatches(ctx context.Context, wishlistID int64, matches []*db.WishlistMatch) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	// Mirrors the unique (wishlist, catalog item) constraint: re-recording
	// the same catalog item is a no-op.
	for _, m := range matches {
		duplicate := false
		for _, have := range s.matches[wishlistID] {
			if have.CatalogID == m.CatalogID && have.CatalogKind == m.CatalogKind {
				duplicate = true
				break
			}
		}
		if !duplicate {
			s.matches[wishlistID] = append(s.matches[wishlistID], m)
		}
	}
	s.statuses[wishlistID] = append(s.statuses[wishlistID], db.WishlistStatusFound)
	return nil
}

func (s *fakeStore) SetStatus(ctx context.Context, id int64, status string) error {
	s.statuses[id] = append(s.statuses[id], status)
	return nil
}

func (s *fakeStore) AppendLog(ctx context.Context, wishlistID int64, level, message string, payload any) error {
	s.logs[wishlistID] = append(s.logs[wishlistID], level+": "+message)
	return nil
}

func (s *fakeStore) currentStatus(id int64) string {
	history := s.statuses[id]
	if len(history) == 0 {
		return db.WishlistStatusWanted
	}
	return history[len(history)-1]
}

type fakeCatalog struct {
	items []*db.CatalogItem
	err   error
}

func (c *fakeCatalog) Search(ctx context.Context, term, kind string) ([]*db.CatalogItem, error) {
	return c.items, c.err
}

type fakeEpisodes struct {
	episodes []metadata.SeriesEpisode
	err      error
}

func (e *fakeEpisodes) SeriesEpisodes(ctx context.Context, seriesID int64) ([]metadata.SeriesEpisode, error) {
	return e.episodes, e.err
}

type fakeSubmitter struct {
	calls []submitCall
	err   error
}

type submitCall struct {
	sourceID   int64
	sourceKind string
	episodes   []download.EpisodeRequest
}

func (s *fakeSubmitter) Submit(ctx context.Context, sourceID int64, sourceKind string, episodes []download.EpisodeRequest) ([]*db.DownloadJob, error) {
	s.calls = append(s.calls, submitCall{sourceID, sourceKind, episodes})
	if s.err != nil {
		return nil, s.err
	}
	jobs := make([]*db.DownloadJob, len(episodes))
	for i := range episodes {
		jobs[i] = &db.DownloadJob{ID: int64(i + 1), SourceID: sourceID, SourceKind: sourceKind}
	}
	return jobs, nil
}

type fakeNotifier struct {
	notifications []MatchNotification
	err           error
}

func (n *fakeNotifier) NotifyMatch(ctx context.Context, notification MatchNotification) error {
	n.notifications = append(n.notifications, notification)
	return n.err
}

func wantedEntry(id int64, title string, autoDownload bool) *db.WishlistEntry {
	return &db.WishlistEntry{
		ID:           id,
		TMDBID:       id * 100,
		MediaType:    db.MediaTypeMovie,
		Title:        title,
		Status:       db.WishlistStatusWanted,
		Priority:     3,
		AutoDownload: autoDownload,
	}
}

func TestRunSweep_RecordsMatch(t *testing.T) {
	store := newFakeStore(wantedEntry(1, "Dune", false))
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 42, Name: "Dune", Kind: db.CatalogKindMovie},
	}}
	submitter := &fakeSubmitter{}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, submitter, nil, 0)

	result, err := engine.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if result.Checked != 1 || result.Found != 1 {
		t.Errorf("Expected checked=1 found=1, got checked=%d found=%d", result.Checked, result.Found)
	}
	if len(store.matches[1]) != 1 {
		t.Fatalf("Expected 1 recorded match, got %d", len(store.matches[1]))
	}
	if store.matches[1][0].Score != 1.0 {
		t.Errorf("Expected exact match score 1.0, got %.2f", store.matches[1][0].Score)
	}
	if store.currentStatus(1) != db.WishlistStatusFound {
		t.Errorf("Expected status found, got %s", store.currentStatus(1))
	}
	if len(submitter.calls) != 0 {
		t.Errorf("Expected no submission without auto-download, got %d", len(submitter.calls))
	}
	if store.lastChecked[1] != 1 {
		t.Errorf("Expected last check stamped once, got %d", store.lastChecked[1])
	}
}

func TestRunSweep_NoMatchBelowThreshold(t *testing.T) {
	store := newFakeStore(wantedEntry(1, "Dune", false))
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 9, Name: "The Batman", Kind: db.CatalogKindMovie},
	}}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, &fakeSubmitter{}, nil, 0)

	result, err := engine.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if result.Found != 0 {
		t.Errorf("Expected no matches, got %d", result.Found)
	}
	if len(store.matches[1]) != 0 {
		t.Errorf("Expected no recorded matches, got %d", len(store.matches[1]))
	}
	if store.lastChecked[1] != 1 {
		t.Error("Last check should be stamped even without a match")
	}
}

func TestRunSweep_SearchFailureDoesNotAbortSweep(t *testing.T) {
	store := newFakeStore(
		wantedEntry(1, "Dune", false),
		wantedEntry(2, "Dune", false),
	)
	catalog := &fakeCatalog{err: errors.New("provider unreachable")}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, &fakeSubmitter{}, nil, 0)

	result, err := engine.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if result.Checked != 2 {
		t.Errorf("Expected both entries checked despite failures, got %d", result.Checked)
	}
	if store.lastChecked[1] != 1 || store.lastChecked[2] != 1 {
		t.Error("Last check should be stamped for failing entries too")
	}
	if len(store.logs[1]) == 0 {
		t.Error("Expected an error log entry for the failed match")
	}
}

func TestRunSweep_AutoDownloadMovie(t *testing.T) {
	store := newFakeStore(wantedEntry(1, "Dune", true))
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 42, Name: "Dune", Kind: db.CatalogKindMovie},
	}}
	submitter := &fakeSubmitter{}
	notifier := &fakeNotifier{}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, submitter, notifier, 0)

	if _, err := engine.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if len(submitter.calls) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(submitter.calls))
	}
	call := submitter.calls[0]
	if call.sourceID != 42 || call.sourceKind != db.SourceKindMovie {
		t.Errorf("Expected movie submission for source 42, got kind %s source %d", call.sourceKind, call.sourceID)
	}
	if len(call.episodes) != 1 {
		t.Errorf("Expected a single episode request for a movie, got %d", len(call.episodes))
	}

	if store.currentStatus(1) != db.WishlistStatusDownloading {
		t.Errorf("Expected status downloading after submission, got %s", store.currentStatus(1))
	}
	if len(notifier.notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifier.notifications))
	}
	if notifier.notifications[0].MatchedName != "Dune" {
		t.Errorf("Expected notification for Dune, got %s", notifier.notifications[0].MatchedName)
	}
}

func TestRunSweep_AutoDownloadSeriesSubmitsAllEpisodes(t *testing.T) {
	entry := wantedEntry(1, "Severance", true)
	entry.MediaType = db.MediaTypeTV

	store := newFakeStore(entry)
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 7, Name: "Severance", Kind: db.CatalogKindSeries},
	}}
	episodes := &fakeEpisodes{episodes: []metadata.SeriesEpisode{
		{ID: 101, Season: 1, Episode: 1, Title: "Good News About Hell"},
		{ID: 102, Season: 1, Episode: 2, Title: "Half Loop"},
	}}
	submitter := &fakeSubmitter{}

	engine := NewEngine(store, catalog, episodes, submitter, nil, 0)

	if _, err := engine.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if len(submitter.calls) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(submitter.calls))
	}
	call := submitter.calls[0]
	if call.sourceKind != db.SourceKindEpisode {
		t.Errorf("Expected series-episode submission, got %s", call.sourceKind)
	}
	if len(call.episodes) != 2 {
		t.Fatalf("Expected 2 episode requests, got %d", len(call.episodes))
	}
	if call.episodes[0].Filename != "Severance S01E01" {
		t.Errorf("Unexpected episode filename: %s", call.episodes[0].Filename)
	}
}

func TestRunSweep_AutoDownloadFailureRevertsToFound(t *testing.T) {
	store := newFakeStore(wantedEntry(1, "Dune", true))
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 42, Name: "Dune", Kind: db.CatalogKindMovie},
	}}
	submitter := &fakeSubmitter{err: errors.New("credentials missing")}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, submitter, nil, 0)

	if _, err := engine.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if store.currentStatus(1) != db.WishlistStatusFound {
		t.Errorf("Expected status reverted to found after failed submission, got %s", store.currentStatus(1))
	}

	foundErrorLog := false
	for _, line := range store.logs[1] {
		if line == "error: auto-download failed: credentials missing" {
			foundErrorLog = true
		}
	}
	if !foundErrorLog {
		t.Errorf("Expected an error log for the failed auto-download, got %v", store.logs[1])
	}
}

func TestRunSweep_NotificationFailureDoesNotRevert(t *testing.T) {
	store := newFakeStore(wantedEntry(1, "Dune", true))
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 42, Name: "Dune", Kind: db.CatalogKindMovie},
	}}
	submitter := &fakeSubmitter{}
	notifier := &fakeNotifier{err: errors.New("webhook down")}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, submitter, notifier, 0)

	if _, err := engine.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if store.currentStatus(1) != db.WishlistStatusDownloading {
		t.Errorf("Notification failure must not affect status, got %s", store.currentStatus(1))
	}
}

func TestRunSweep_TwiceRecordsNoDuplicateMatches(t *testing.T) {
	store := newFakeStore(wantedEntry(1, "Dune", false))
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 42, Name: "Dune", Kind: db.CatalogKindMovie},
	}}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, &fakeSubmitter{}, nil, 0)

	for i := 0; i < 2; i++ {
		if _, err := engine.RunSweep(context.Background()); err != nil {
			t.Fatalf("RunSweep failed: %v", err)
		}
	}

	if len(store.matches[1]) != 1 {
		t.Errorf("Expected one match row after matching the same catalog item twice, got %d", len(store.matches[1]))
	}
}

func TestMatchEntry_DeduplicatesAcrossTerms(t *testing.T) {
	entry := wantedEntry(1, "Dune", false)
	entry.SearchKeywords = sql.NullString{String: "dune 2021", Valid: true}

	// The same catalog item comes back for both search terms
	store := newFakeStore(entry)
	catalog := &fakeCatalog{items: []*db.CatalogItem{
		{ProviderID: 42, Name: "Dune", Kind: db.CatalogKindMovie},
	}}

	engine := NewEngine(store, catalog, &fakeEpisodes{}, &fakeSubmitter{}, nil, 0)

	if _, err := engine.RunSweep(context.Background()); err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}

	if len(store.matches[1]) != 1 {
		t.Errorf("Expected item recorded once despite matching two terms, got %d", len(store.matches[1]))
	}
}
