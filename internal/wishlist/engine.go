package wishlist

import (
	"context"
	"fmt"
	"time"

	"github.com/streamvault/backend/internal/db"
	"github.com/streamvault/backend/internal/download"
	"github.com/streamvault/backend/internal/logger"
	"github.com/streamvault/backend/internal/metadata"
	"github.com/streamvault/backend/internal/metrics"
)

// Store is the persistence surface the engine needs
type Store interface {
	ListWanted(ctx context.Context) ([]*db.WishlistEntry, error)
	TouchLastCheck(ctx context.Context, id int64) error
	RecordMatches(ctx context.Context, wishlistID int64, matches []*db.WishlistMatch) error
	SetStatus(ctx context.Context, id int64, status string) error
	AppendLog(ctx context.Context, wishlistID int64, level, message string, payload any) error
}

// CatalogSearcher runs the three-variant name search against the mirror
type CatalogSearcher interface {
	Search(ctx context.Context, term, kind string) ([]*db.CatalogItem, error)
}

// EpisodeLister enumerates provider episodes for series auto-download
type EpisodeLister interface {
	SeriesEpisodes(ctx context.Context, seriesID int64) ([]metadata.SeriesEpisode, error)
}

// JobSubmitter feeds accepted matches into the download queue
type JobSubmitter interface {
	Submit(ctx context.Context, sourceID int64, sourceKind string, episodes []download.EpisodeRequest) ([]*db.DownloadJob, error)
}

// Notifier emits an external notification when an auto-download starts.
// Failures are logged, never propagated into wishlist state.
type Notifier interface {
	NotifyMatch(ctx context.Context, n MatchNotification) error
}

// MatchNotification summarizes a successful auto-download trigger
type MatchNotification struct {
	Title        string  `json:"title"`
	MatchedName  string  `json:"matched_name"`
	Score        float64 `json:"score"`
	AutoDownload bool    `json:"auto_download"`
}

// SweepResult reports one sweep run
type SweepResult struct {
	Checked int `json:"checked"`
	Found   int `json:"found"`
}

// Engine periodically searches the catalog mirror for wanted titles and,
// on a sufficiently strong match, feeds the download queue.
type Engine struct {
	store     Store
	catalog   CatalogSearcher
	episodes  EpisodeLister
	submitter JobSubmitter
	notifier  Notifier
	itemDelay time.Duration
	log       *logger.Logger
}

// NewEngine creates a matching engine. notifier may be nil.
func NewEngine(store Store, catalog CatalogSearcher, episodes EpisodeLister, submitter JobSubmitter, notifier Notifier, itemDelay time.Duration) *Engine {
	return &Engine{
		store:     store,
		catalog:   catalog,
		episodes:  episodes,
		submitter: submitter,
		notifier:  notifier,
		itemDelay: itemDelay,
		log:       logger.Default().WithComponent("wishlist"),
	}
}

// RunScheduled runs sweeps on the given interval until the context ends
func (e *Engine) RunScheduled(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := e.RunSweep(ctx)
			if err != nil {
				e.log.Error(ctx, "scheduled sweep failed", err)
				continue
			}
			e.log.Info(ctx, "scheduled sweep finished", map[string]interface{}{
				"checked": result.Checked,
				"found":   result.Found,
			})
		}
	}
}

// RunSweep matches every wanted entry against the catalog, highest priority
// first, then oldest first. A single entry's failure never aborts the
// sweep; last_check is stamped regardless of outcome.
func (e *Engine) RunSweep(ctx context.Context) (*SweepResult, error) {
	entries, err := e.store.ListWanted(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for i, entry := range entries {
		// Space out the external calls between items
		if i > 0 && e.itemDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(e.itemDelay):
			}
		}

		found, err := e.matchEntry(ctx, entry)
		if err != nil {
			e.log.Error(ctx, "matching failed for entry", err, map[string]interface{}{"wishlist_id": entry.ID})
			e.store.AppendLog(ctx, entry.ID, db.LogLevelError, "matching failed: "+err.Error(), nil)
		}

		if err := e.store.TouchLastCheck(ctx, entry.ID); err != nil {
			e.log.Warn(ctx, "failed to stamp last check", map[string]interface{}{
				"wishlist_id": entry.ID,
				"error":       err.Error(),
			})
		}

		result.Checked++
		if found {
			result.Found++
		}
	}

	return result, nil
}

// matchEntry searches and scores catalog candidates for one entry. When at
// least one candidate clears the threshold the entry transitions to found
// and, with auto-download set, the best candidate is submitted.
func (e *Engine) matchEntry(ctx context.Context, entry *db.WishlistEntry) (bool, error) {
	kind := db.CatalogKindMovie
	if entry.MediaType == db.MediaTypeTV {
		kind = db.CatalogKindSeries
	}

	var scored []Candidate
	for _, term := range SearchTerms(entry) {
		items, err := e.catalog.Search(ctx, term, kind)
		if err != nil {
			return false, err
		}
		for _, item := range items {
			score, reason := CalculateMatchScore(term, entry, item)
			scored = append(scored, Candidate{Item: item, Score: score, Reason: reason})
		}
	}

	accepted := selectCandidates(scored)
	if len(accepted) == 0 {
		e.log.Debug(ctx, "no match found", map[string]interface{}{"wishlist_id": entry.ID, "title": entry.Title})
		return false, nil
	}

	matches := make([]*db.WishlistMatch, 0, len(accepted))
	for _, c := range accepted {
		matches = append(matches, &db.WishlistMatch{
			WishlistID:  entry.ID,
			CatalogID:   c.Item.ProviderID,
			CatalogKind: c.Item.Kind,
			CatalogName: c.Item.Name,
			Score:       c.Score,
			Reason:      c.Reason,
		})
	}

	if err := e.store.RecordMatches(ctx, entry.ID, matches); err != nil {
		return false, err
	}
	metrics.IncrCounter("wishlist_matches_total")

	best := accepted[0]
	e.store.AppendLog(ctx, entry.ID, db.LogLevelInfo,
		fmt.Sprintf("matched %q with score %.2f (%s)", best.Item.Name, best.Score, best.Reason),
		map[string]any{"catalog_id": best.Item.ProviderID, "score": best.Score})

	e.log.Info(ctx, "wishlist match found", map[string]interface{}{
		"wishlist_id": entry.ID,
		"title":       entry.Title,
		"matched":     best.Item.Name,
		"score":       best.Score,
	})

	if entry.AutoDownload {
		e.autoDownload(ctx, entry, best)
	}

	return true, nil
}

// autoDownload submits jobs for the best candidate. Any submission error
// reverts the entry from downloading back to found so the next sweep can
// retry.
func (e *Engine) autoDownload(ctx context.Context, entry *db.WishlistEntry, best Candidate) {
	if err := e.store.SetStatus(ctx, entry.ID, db.WishlistStatusDownloading); err != nil {
		e.log.Error(ctx, "failed to mark entry downloading", err, map[string]interface{}{"wishlist_id": entry.ID})
		return
	}

	if err := e.submitJobs(ctx, best); err != nil {
		e.log.Error(ctx, "auto-download submission failed", err, map[string]interface{}{"wishlist_id": entry.ID})
		e.store.AppendLog(ctx, entry.ID, db.LogLevelError, "auto-download failed: "+err.Error(), nil)
		if revertErr := e.store.SetStatus(ctx, entry.ID, db.WishlistStatusFound); revertErr != nil {
			e.log.Error(ctx, "failed to revert entry to found", revertErr, map[string]interface{}{"wishlist_id": entry.ID})
		}
		return
	}

	e.store.AppendLog(ctx, entry.ID, db.LogLevelInfo,
		fmt.Sprintf("auto-download started for %q", best.Item.Name), nil)

	if e.notifier != nil {
		notification := MatchNotification{
			Title:        entry.Title,
			MatchedName:  best.Item.Name,
			Score:        best.Score,
			AutoDownload: true,
		}
		if err := e.notifier.NotifyMatch(ctx, notification); err != nil {
			e.log.Warn(ctx, "match notification failed", map[string]interface{}{
				"wishlist_id": entry.ID,
				"error":       err.Error(),
			})
			e.store.AppendLog(ctx, entry.ID, db.LogLevelWarn, "notification failed: "+err.Error(), nil)
		}
	}
}

// submitJobs creates the download jobs for a candidate: one for a movie,
// one per provider episode for a series.
func (e *Engine) submitJobs(ctx context.Context, best Candidate) error {
	if best.Item.Kind == db.CatalogKindMovie {
		_, err := e.submitter.Submit(ctx, best.Item.ProviderID, db.SourceKindMovie, []download.EpisodeRequest{
			{ID: best.Item.ProviderID, Filename: best.Item.Name},
		})
		return err
	}

	episodes, err := e.episodes.SeriesEpisodes(ctx, best.Item.ProviderID)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		return fmt.Errorf("series %d has no episodes", best.Item.ProviderID)
	}

	requests := make([]download.EpisodeRequest, 0, len(episodes))
	for _, ep := range episodes {
		requests = append(requests, download.EpisodeRequest{
			ID:       ep.ID,
			Filename: fmt.Sprintf("%s S%02dE%02d", best.Item.Name, ep.Season, ep.Episode),
		})
	}

	_, err = e.submitter.Submit(ctx, best.Item.ProviderID, db.SourceKindEpisode, requests)
	return err
}
