package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streamvault/backend/internal/cache"
	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/logger"
)

const detailsCacheTTL = 6 * time.Hour

// SettingsStore exposes provider credentials and API keys as key/value pairs
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// Details combines provider and external-metadata fields for one source item.
// Any field may be empty; callers fall back per the naming rules.
type Details struct {
	ProviderTitle string `json:"provider_title"`
	ProviderDate  string `json:"provider_date"`
	TMDBTitle     string `json:"tmdb_title"`
	TMDBDate      string `json:"tmdb_date"`
	ContainerExt  string `json:"container_ext"`
	Season        int    `json:"season,omitempty"`
}

// Client is the combined metadata lookup used by the download executor and
// the wishlist engine. Pure request/response; it holds no state beyond the
// rate limiter and cache.
type Client struct {
	provider *ProviderClient
	tmdb     *TMDBClient
	settings SettingsStore
	cache    *cache.Cache
	log      *logger.Logger
}

// NewClient creates a combined metadata client. cache may be nil.
func NewClient(provider *ProviderClient, tmdb *TMDBClient, settings SettingsStore, c *cache.Cache) *Client {
	return &Client{
		provider: provider,
		tmdb:     tmdb,
		settings: settings,
		cache:    c,
		log:      logger.Default().WithComponent("metadata"),
	}
}

// Credentials loads the provider credentials from settings, failing fast
// when any of them is missing.
func (c *Client) Credentials(ctx context.Context) (Credentials, error) {
	var creds Credentials
	for _, s := range []struct {
		key  string
		dest *string
	}{
		{db.SettingProviderURL, &creds.BaseURL},
		{db.SettingProviderUsername, &creds.Username},
		{db.SettingProviderPassword, &creds.Password},
	} {
		value, err := c.settings.Get(ctx, s.key)
		if err != nil {
			if apperrors.Is(err, db.ErrSettingNotFound) {
				return Credentials{}, apperrors.MissingCredentials(s.key)
			}
			return Credentials{}, err
		}
		*s.dest = value
	}
	return creds, nil
}

// tmdbKey returns the configured TMDB key, or "" when unset. An unset key
// disables external metadata; it is not an error.
func (c *Client) tmdbKey(ctx context.Context) string {
	key, err := c.settings.Get(ctx, db.SettingTMDBAPIKey)
	if err != nil {
		return ""
	}
	return key
}

// Details returns the combined provider/external-metadata fields for the
// given source item. For series-episode jobs, episodeID selects the episode
// whose season and container metadata apply. Lookup failures degrade: the
// caller receives whatever fields could be resolved.
func (c *Client) Details(ctx context.Context, sourceKind string, sourceID int64, episodeID *int64) (*Details, error) {
	cacheKey := fmt.Sprintf("meta:%s:%d", sourceKind, sourceID)
	if episodeID != nil {
		cacheKey = fmt.Sprintf("%s:%d", cacheKey, *episodeID)
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			var d Details
			if err := json.Unmarshal([]byte(cached), &d); err == nil {
				return &d, nil
			}
		}
	}

	creds, err := c.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	var d Details
	var tmdbID int64

	switch sourceKind {
	case db.SourceKindEpisode:
		info, err := c.provider.GetSeriesInfo(ctx, creds, sourceID)
		if err != nil {
			return nil, err
		}
		d.ProviderTitle = info.Name
		d.ProviderDate = info.ReleaseDate
		tmdbID = info.TMDBID
		if episodeID != nil {
			for _, ep := range info.Episodes {
				if ep.ID == *episodeID {
					d.Season = ep.Season
					d.ContainerExt = ep.ContainerExt
					break
				}
			}
		}
	default:
		info, err := c.provider.GetVodInfo(ctx, creds, sourceID)
		if err != nil {
			return nil, err
		}
		d.ProviderTitle = info.Name
		d.ProviderDate = info.ReleaseDate
		d.ContainerExt = info.ContainerExt
		tmdbID = info.TMDBID
	}

	if key := c.tmdbKey(ctx); key != "" && tmdbID > 0 {
		mediaType := db.MediaTypeMovie
		if sourceKind == db.SourceKindEpisode {
			mediaType = db.MediaTypeTV
		}
		title, err := c.tmdb.Lookup(ctx, key, mediaType, tmdbID)
		if err != nil {
			// External metadata is an enrichment; provider fields still stand.
			c.log.Warn(ctx, "external metadata lookup failed", map[string]interface{}{
				"source_kind": sourceKind,
				"source_id":   sourceID,
				"error":       err.Error(),
			})
		} else {
			d.TMDBTitle = title.Title
			d.TMDBDate = title.ReleaseDate
		}
	}

	if c.cache != nil {
		if data, err := json.Marshal(&d); err == nil {
			c.cache.Set(ctx, cacheKey, string(data), detailsCacheTTL)
		}
	}

	return &d, nil
}

// SeriesEpisodes lists the provider episodes for a series, for per-episode
// job submission during auto-download.
func (c *Client) SeriesEpisodes(ctx context.Context, seriesID int64) ([]SeriesEpisode, error) {
	creds, err := c.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	info, err := c.provider.GetSeriesInfo(ctx, creds, seriesID)
	if err != nil {
		return nil, err
	}
	return info.Episodes, nil
}

// ProviderMovies lists the provider's full movie catalog for the mirror sync
func (c *Client) ProviderMovies(ctx context.Context) ([]VodStream, error) {
	creds, err := c.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return c.provider.ListVodStreams(ctx, creds)
}

// ProviderSeries lists the provider's full series catalog for the mirror sync
func (c *Client) ProviderSeries(ctx context.Context) ([]SeriesListing, error) {
	creds, err := c.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return c.provider.ListSeries(ctx, creds)
}

// ResolveTitle fetches the external metadata for a wishlist entry at
// creation time.
func (c *Client) ResolveTitle(ctx context.Context, mediaType string, tmdbID int64) (*TitleDetails, error) {
	return c.tmdb.Lookup(ctx, c.tmdbKey(ctx), mediaType, tmdbID)
}

// StreamURL builds the provider's direct-stream URL for a job
func (c *Client) StreamURL(ctx context.Context, sourceKind string, sourceID int64, episodeID *int64, ext string) (string, error) {
	creds, err := c.Credentials(ctx)
	if err != nil {
		return "", err
	}

	if sourceKind == db.SourceKindEpisode {
		if episodeID == nil {
			return "", apperrors.ValidationError("episode job has no episode id")
		}
		return EpisodeStreamURL(creds, *episodeID, ext), nil
	}
	return MovieStreamURL(creds, sourceID, ext), nil
}
