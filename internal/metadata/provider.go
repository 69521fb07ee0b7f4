package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	apperrors "github.com/streamvault/backend/internal/errors"
)

const (
	providerTimeout = 15 * time.Second

	// Providers throttle hard; space out our calls the same way the
	// catalog sync does.
	providerRateDelay = 500 * time.Millisecond
)

// Credentials identifies an account on the IPTV provider
type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

// ProviderClient talks to an Xtream-style provider panel API
type ProviderClient struct {
	httpClient    *http.Client
	lastRequest   time.Time
	rateLimitLock sync.Mutex
}

// NewProviderClient creates a provider API client
func NewProviderClient() *ProviderClient {
	return &ProviderClient{
		httpClient: &http.Client{
			Timeout: providerTimeout,
		},
	}
}

// VodInfo is the provider's own metadata for a movie
type VodInfo struct {
	Name         string
	ReleaseDate  string
	TMDBID       int64
	ContainerExt string
}

// SeriesEpisode is one episode inside a provider series listing
type SeriesEpisode struct {
	ID           int64
	Season       int
	Episode      int
	Title        string
	ContainerExt string
}

// SeriesInfo is the provider's own metadata for a series
type SeriesInfo struct {
	Name        string
	ReleaseDate string
	TMDBID      int64
	Episodes    []SeriesEpisode
}

// VodStream is one movie row in the provider's full VOD listing
type VodStream struct {
	ID           int64
	Name         string
	ContainerExt string
	TMDBID       int64
}

// SeriesListing is one series row in the provider's full series listing
type SeriesListing struct {
	ID          int64
	Name        string
	ReleaseDate string
	TMDBID      int64
}

type vodStreamResponse struct {
	StreamID           json.Number `json:"stream_id"`
	Name               string      `json:"name"`
	ContainerExtension string      `json:"container_extension"`
	TMDBID             json.Number `json:"tmdb"`
}

type seriesListingResponse struct {
	SeriesID    json.Number `json:"series_id"`
	Name        string      `json:"name"`
	ReleaseDate string      `json:"releaseDate"`
	TMDBID      json.Number `json:"tmdb"`
}

type vodInfoResponse struct {
	Info struct {
		Name               string      `json:"name"`
		ReleaseDate        string      `json:"releasedate"`
		TMDBID             json.Number `json:"tmdb_id"`
		ContainerExtension string      `json:"container_extension"`
	} `json:"info"`
	MovieData struct {
		Name               string `json:"name"`
		ContainerExtension string `json:"container_extension"`
	} `json:"movie_data"`
}

type seriesInfoResponse struct {
	Info struct {
		Name        string      `json:"name"`
		ReleaseDate string      `json:"releaseDate"`
		TMDBID      json.Number `json:"tmdb_id"`
	} `json:"info"`
	Episodes map[string][]struct {
		ID                 json.Number `json:"id"`
		EpisodeNum         json.Number `json:"episode_num"`
		Season             json.Number `json:"season"`
		Title              string      `json:"title"`
		ContainerExtension string      `json:"container_extension"`
	} `json:"episodes"`
}

func (c *ProviderClient) enforceRateLimit() {
	c.rateLimitLock.Lock()
	defer c.rateLimitLock.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < providerRateDelay {
		time.Sleep(providerRateDelay - elapsed)
	}
	c.lastRequest = time.Now()
}

func (c *ProviderClient) get(ctx context.Context, creds Credentials, action string, extra url.Values, out any) error {
	return apperrors.Retry(ctx, apperrors.ProviderRetryConfig(), func(ctx context.Context) error {
		return c.doGet(ctx, creds, action, extra, out)
	})
}

func (c *ProviderClient) doGet(ctx context.Context, creds Credentials, action string, extra url.Values, out any) error {
	c.enforceRateLimit()

	q := url.Values{}
	q.Set("username", creds.Username)
	q.Set("password", creds.Password)
	q.Set("action", action)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	reqURL := fmt.Sprintf("%s/player_api.php?%s", creds.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return apperrors.ProviderError("failed to build provider request").WithCause(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.ProviderError("provider request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.ProviderError(fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.ProviderError("failed to decode provider response").WithCause(err)
	}

	return nil
}

// GetVodInfo fetches provider metadata for one movie
func (c *ProviderClient) GetVodInfo(ctx context.Context, creds Credentials, vodID int64) (*VodInfo, error) {
	var raw vodInfoResponse
	extra := url.Values{"vod_id": {fmt.Sprint(vodID)}}
	if err := c.get(ctx, creds, "get_vod_info", extra, &raw); err != nil {
		return nil, err
	}

	info := &VodInfo{
		Name:         raw.Info.Name,
		ReleaseDate:  raw.Info.ReleaseDate,
		ContainerExt: raw.Info.ContainerExtension,
	}
	if info.Name == "" {
		info.Name = raw.MovieData.Name
	}
	if info.ContainerExt == "" {
		info.ContainerExt = raw.MovieData.ContainerExtension
	}
	if id, err := raw.Info.TMDBID.Int64(); err == nil {
		info.TMDBID = id
	}

	return info, nil
}

// GetSeriesInfo fetches provider metadata and the episode list for a series
func (c *ProviderClient) GetSeriesInfo(ctx context.Context, creds Credentials, seriesID int64) (*SeriesInfo, error) {
	var raw seriesInfoResponse
	extra := url.Values{"series_id": {fmt.Sprint(seriesID)}}
	if err := c.get(ctx, creds, "get_series_info", extra, &raw); err != nil {
		return nil, err
	}

	info := &SeriesInfo{
		Name:        raw.Info.Name,
		ReleaseDate: raw.Info.ReleaseDate,
	}
	if id, err := raw.Info.TMDBID.Int64(); err == nil {
		info.TMDBID = id
	}

	for _, season := range raw.Episodes {
		for _, ep := range season {
			episode := SeriesEpisode{
				Title:        ep.Title,
				ContainerExt: ep.ContainerExtension,
			}
			if id, err := ep.ID.Int64(); err == nil {
				episode.ID = id
			}
			if n, err := ep.Season.Int64(); err == nil {
				episode.Season = int(n)
			}
			if n, err := ep.EpisodeNum.Int64(); err == nil {
				episode.Episode = int(n)
			}
			info.Episodes = append(info.Episodes, episode)
		}
	}

	return info, nil
}

// ListVodStreams fetches the provider's full movie listing. Panels return
// the whole catalog in one response; there is no pagination.
func (c *ProviderClient) ListVodStreams(ctx context.Context, creds Credentials) ([]VodStream, error) {
	var raw []vodStreamResponse
	if err := c.get(ctx, creds, "get_vod_streams", nil, &raw); err != nil {
		return nil, err
	}

	streams := make([]VodStream, 0, len(raw))
	for _, s := range raw {
		stream := VodStream{
			Name:         s.Name,
			ContainerExt: s.ContainerExtension,
		}
		if id, err := s.StreamID.Int64(); err == nil {
			stream.ID = id
		}
		if id, err := s.TMDBID.Int64(); err == nil {
			stream.TMDBID = id
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

// ListSeries fetches the provider's full series listing
func (c *ProviderClient) ListSeries(ctx context.Context, creds Credentials) ([]SeriesListing, error) {
	var raw []seriesListingResponse
	if err := c.get(ctx, creds, "get_series", nil, &raw); err != nil {
		return nil, err
	}

	listings := make([]SeriesListing, 0, len(raw))
	for _, s := range raw {
		listing := SeriesListing{
			Name:        s.Name,
			ReleaseDate: s.ReleaseDate,
		}
		if id, err := s.SeriesID.Int64(); err == nil {
			listing.ID = id
		}
		if id, err := s.TMDBID.Int64(); err == nil {
			listing.TMDBID = id
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// MovieStreamURL builds the provider's direct-stream URL for a movie
func MovieStreamURL(creds Credentials, vodID int64, ext string) string {
	return fmt.Sprintf("%s/movie/%s/%s/%d.%s", creds.BaseURL, creds.Username, creds.Password, vodID, ext)
}

// EpisodeStreamURL builds the provider's direct-stream URL for an episode
func EpisodeStreamURL(creds Credentials, episodeID int64, ext string) string {
	return fmt.Sprintf("%s/series/%s/%s/%d.%s", creds.BaseURL, creds.Username, creds.Password, episodeID, ext)
}
