package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Job status lifecycle: queued -> downloading -> {completed | failed}.
// A failed job is never requeued automatically.
const (
	JobStatusQueued      = "queued"
	JobStatusDownloading = "downloading"
	JobStatusCompleted   = "completed"
	JobStatusFailed      = "failed"
)

// Source kinds for a download job
const (
	SourceKindMovie   = "movie"
	SourceKindEpisode = "series-episode"
)

// Catalog item kinds
const (
	CatalogKindMovie  = "movie"
	CatalogKindSeries = "series"
)

// Wishlist media types
const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// Wishlist status lifecycle: wanted -> found -> downloading -> completed.
// downloading reverts to found when an auto-download submission fails.
const (
	WishlistStatusWanted      = "wanted"
	WishlistStatusFound       = "found"
	WishlistStatusDownloading = "downloading"
	WishlistStatusCompleted   = "completed"
)

// DownloadJob is one queued or executing download unit (one file)
type DownloadJob struct {
	ID         int64
	SourceID   int64
	SourceKind string
	EpisodeID  *int64
	Filename   string
	Filepath   sql.NullString
	Status     string
	Progress   int
	Error      sql.NullString
	CreatedAt  time.Time
}

// IsTerminal returns true if the job is in a terminal state
func (j *DownloadJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// CatalogItem is a locally mirrored provider movie or series
type CatalogItem struct {
	ID           int64
	ProviderID   int64
	Name         string
	Kind         string
	TMDBID       sql.NullInt64
	ReleaseDate  sql.NullString
	ContainerExt sql.NullString
	AddedAt      time.Time
}

// WishlistEntry is a desired title not yet confirmed present in the catalog
type WishlistEntry struct {
	ID             int64
	TMDBID         int64
	MediaType      string
	Title          string
	OriginalTitle  sql.NullString
	ReleaseDate    sql.NullString
	PosterURL      sql.NullString
	Overview       sql.NullString
	Genres         sql.NullString
	Rating         sql.NullFloat64
	Status         string
	Priority       int
	AutoDownload   bool
	SearchKeywords sql.NullString
	Notes          sql.NullString
	AddedAt        time.Time
	FoundAt        *time.Time
	LastCheck      *time.Time
}

// ReleaseYear returns the first four characters of the release date, or ""
func (e *WishlistEntry) ReleaseYear() string {
	if !e.ReleaseDate.Valid || len(e.ReleaseDate.String) < 4 {
		return ""
	}
	return e.ReleaseDate.String[:4]
}

// WishlistMatch links a wishlist entry to a catalog item judged to satisfy it
type WishlistMatch struct {
	ID          int64
	WishlistID  int64
	CatalogID   int64
	CatalogKind string
	CatalogName string
	Score       float64
	Reason      string
	CreatedAt   time.Time
}

// WishlistLogEntry is an append-only audit record for a wishlist entry
type WishlistLogEntry struct {
	ID         int64
	WishlistID int64
	Level      string
	Message    string
	Payload    json.RawMessage
	CreatedAt  time.Time
}
