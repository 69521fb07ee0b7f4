package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/logger"
	"github.com/streamvault/backend/internal/metadata"
	"github.com/streamvault/backend/internal/metrics"
)

// Store is the catalog mirror persistence surface used by the syncer
type Store interface {
	GetByProviderID(ctx context.Context, providerID int64, kind string) (*db.CatalogItem, error)
	Upsert(ctx context.Context, item *db.CatalogItem) error
}

// Lister fetches the provider's full content listings
type Lister interface {
	ProviderMovies(ctx context.Context) ([]metadata.VodStream, error)
	ProviderSeries(ctx context.Context) ([]metadata.SeriesListing, error)
}

// Result summarizes one sync run
type Result struct {
	Movies int `json:"movies"`
	Series int `json:"series"`
	Added  int `json:"added"`
}

// Syncer mirrors the provider's content listing into local catalog rows,
// which is where the wishlist engine searches.
type Syncer struct {
	store  Store
	lister Lister
	log    *logger.Logger
}

func NewSyncer(store Store, lister Lister) *Syncer {
	return &Syncer{
		store:  store,
		lister: lister,
		log:    logger.Default().WithComponent("catalog"),
	}
}

// Run refreshes the mirror from the provider listings. Existing rows are
// updated in place; the run fails as a whole on the first storage error.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	movies, err := s.lister.ProviderMovies(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range movies {
		item := &db.CatalogItem{
			ProviderID:   m.ID,
			Name:         m.Name,
			Kind:         db.CatalogKindMovie,
			TMDBID:       nullInt64(m.TMDBID),
			ContainerExt: nullString(m.ContainerExt),
		}
		added, err := s.upsert(ctx, item)
		if err != nil {
			return nil, err
		}
		if added {
			result.Added++
		}
		result.Movies++
	}

	series, err := s.lister.ProviderSeries(ctx)
	if err != nil {
		return nil, err
	}
	for _, listing := range series {
		item := &db.CatalogItem{
			ProviderID:  listing.ID,
			Name:        listing.Name,
			Kind:        db.CatalogKindSeries,
			TMDBID:      nullInt64(listing.TMDBID),
			ReleaseDate: nullString(listing.ReleaseDate),
		}
		added, err := s.upsert(ctx, item)
		if err != nil {
			return nil, err
		}
		if added {
			result.Added++
		}
		result.Series++
	}

	metrics.IncrCounter("catalog_syncs_total")
	s.log.Info(ctx, "catalog sync finished", map[string]interface{}{
		"movies": result.Movies,
		"series": result.Series,
		"added":  result.Added,
	})
	return result, nil
}

// upsert writes one mirrored row and reports whether it was new
func (s *Syncer) upsert(ctx context.Context, item *db.CatalogItem) (bool, error) {
	isNew := false
	if _, err := s.store.GetByProviderID(ctx, item.ProviderID, item.Kind); err != nil {
		if !apperrors.Is(err, db.ErrCatalogItemNotFound) {
			return false, err
		}
		isNew = true
	}

	if err := s.store.Upsert(ctx, item); err != nil {
		return false, err
	}
	return isNew, nil
}

// Get returns one mirrored item by its provider identity
func (s *Syncer) Get(ctx context.Context, providerID int64, kind string) (*db.CatalogItem, error) {
	item, err := s.store.GetByProviderID(ctx, providerID, kind)
	if err != nil {
		if apperrors.Is(err, db.ErrCatalogItemNotFound) {
			return nil, apperrors.CatalogItemNotFound()
		}
		return nil, err
	}
	return item, nil
}

// RunScheduled runs syncs on the given interval until the context ends.
// An unconfigured provider is expected on a fresh install and only worth
// a warning; so is an unreachable one.
func (s *Syncer) RunScheduled(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				switch {
				case apperrors.IsClientError(err):
					s.log.Warn(ctx, "catalog sync skipped, provider not configured", map[string]interface{}{"error": err.Error()})
				case apperrors.IsExternalError(err):
					s.log.Warn(ctx, "catalog sync failed, provider unreachable", map[string]interface{}{"error": err.Error()})
				default:
					s.log.Error(ctx, "catalog sync failed", err)
				}
			}
		}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n > 0}
}
