package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/streamvault/backend/internal/errors"
)

const (
	tmdbBaseURL    = "https://api.themoviedb.org/3"
	tmdbPosterBase = "https://image.tmdb.org/t/p/w500"
	tmdbTimeout    = 10 * time.Second
)

// ErrTMDBNotFound marks a 404 from the metadata service. Callers record the
// item as checked rather than treating this as a failure.
var ErrTMDBNotFound = apperrors.New(apperrors.CodeMetadataError, "title not found on metadata service", apperrors.CategoryExternal, http.StatusNotFound)

// TMDBClient talks to The Movie Database API
type TMDBClient struct {
	httpClient *http.Client
}

// NewTMDBClient creates a TMDB API client
func NewTMDBClient() *TMDBClient {
	return &TMDBClient{
		httpClient: &http.Client{
			Timeout: tmdbTimeout,
		},
	}
}

// TitleDetails is the subset of TMDB fields the system stores
type TitleDetails struct {
	TMDBID        int64
	Title         string
	OriginalTitle string
	ReleaseDate   string
	PosterURL     string
	Overview      string
	Genres        []string
	Rating        float64
}

type tmdbTitleResponse struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Name          string  `json:"name"`
	OriginalTitle string  `json:"original_title"`
	OriginalName  string  `json:"original_name"`
	ReleaseDate   string  `json:"release_date"`
	FirstAirDate  string  `json:"first_air_date"`
	PosterPath    string  `json:"poster_path"`
	Overview      string  `json:"overview"`
	VoteAverage   float64 `json:"vote_average"`
	Genres        []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

// Lookup fetches details for a movie or tv title by TMDB id.
// mediaType is "movie" or "tv". Transient failures are retried; a 404 is
// returned as ErrTMDBNotFound without retrying.
func (c *TMDBClient) Lookup(ctx context.Context, apiKey string, mediaType string, tmdbID int64) (*TitleDetails, error) {
	if apiKey == "" {
		return nil, apperrors.MissingCredentials("tmdb_api_key")
	}

	var details *TitleDetails
	err := apperrors.Retry(ctx, apperrors.MetadataRetryConfig(), func(ctx context.Context) error {
		d, err := c.lookup(ctx, apiKey, mediaType, tmdbID)
		if err != nil {
			return err
		}
		details = d
		return nil
	})
	return details, err
}

func (c *TMDBClient) lookup(ctx context.Context, apiKey string, mediaType string, tmdbID int64) (*TitleDetails, error) {
	path := "movie"
	if mediaType == "tv" {
		path = "tv"
	}
	reqURL := fmt.Sprintf("%s/%s/%d?api_key=%s", tmdbBaseURL, path, tmdbID, apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.MetadataError("failed to build metadata request").WithCause(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.MetadataError("metadata request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTMDBNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.MetadataError(fmt.Sprintf("metadata service returned status %d", resp.StatusCode))
	}

	var raw tmdbTitleResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperrors.MetadataError("failed to decode metadata response").WithCause(err)
	}

	details := &TitleDetails{
		TMDBID:        raw.ID,
		Title:         raw.Title,
		OriginalTitle: raw.OriginalTitle,
		ReleaseDate:   raw.ReleaseDate,
		Overview:      raw.Overview,
		Rating:        raw.VoteAverage,
	}
	// TV responses use name/first_air_date instead of title/release_date
	if details.Title == "" {
		details.Title = raw.Name
	}
	if details.OriginalTitle == "" {
		details.OriginalTitle = raw.OriginalName
	}
	if details.ReleaseDate == "" {
		details.ReleaseDate = raw.FirstAirDate
	}
	if raw.PosterPath != "" {
		details.PosterURL = tmdbPosterBase + raw.PosterPath
	}
	for _, g := range raw.Genres {
		details.Genres = append(details.Genres, g.Name)
	}

	return details, nil
}

// GenreList flattens the genre names into the stored comma-separated form
func (d *TitleDetails) GenreList() string {
	return strings.Join(d.Genres, ", ")
}
