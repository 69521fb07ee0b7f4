package wishlist

import (
	"context"
	"database/sql"

	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/logger"
	"github.com/streamvault/backend/internal/metadata"
)

// TitleResolver fetches external metadata for an entry at creation time
type TitleResolver interface {
	ResolveTitle(ctx context.Context, mediaType string, tmdbID int64) (*metadata.TitleDetails, error)
}

// AddRequest is the user-supplied part of a new wishlist entry
type AddRequest struct {
	TMDBID         int64  `json:"tmdb_id"`
	MediaType      string `json:"media_type"`
	Priority       int    `json:"priority"`
	AutoDownload   bool   `json:"auto_download"`
	SearchKeywords string `json:"search_keywords"`
	Notes          string `json:"notes"`
}

// Service owns wishlist CRUD; the Engine owns matching
type Service struct {
	repo     *db.WishlistRepository
	resolver TitleResolver
	log      *logger.Logger
}

func NewService(repo *db.WishlistRepository, resolver TitleResolver) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		log:      logger.Default().WithComponent("wishlist"),
	}
}

// Add resolves the title against the metadata service and creates the entry
func (s *Service) Add(ctx context.Context, req AddRequest) (*db.WishlistEntry, error) {
	if req.MediaType != db.MediaTypeMovie && req.MediaType != db.MediaTypeTV {
		return nil, apperrors.ValidationError("media type must be movie or tv")
	}
	if req.Priority < 1 || req.Priority > 5 {
		req.Priority = 3
	}

	details, err := s.resolver.ResolveTitle(ctx, req.MediaType, req.TMDBID)
	if err != nil {
		return nil, err
	}

	entry := &db.WishlistEntry{
		TMDBID:         details.TMDBID,
		MediaType:      req.MediaType,
		Title:          details.Title,
		OriginalTitle:  nullString(details.OriginalTitle),
		ReleaseDate:    nullString(details.ReleaseDate),
		PosterURL:      nullString(details.PosterURL),
		Overview:       nullString(details.Overview),
		Genres:         nullString(details.GenreList()),
		Rating:         sql.NullFloat64{Float64: details.Rating, Valid: details.Rating > 0},
		Priority:       req.Priority,
		AutoDownload:   req.AutoDownload,
		SearchKeywords: nullString(req.SearchKeywords),
		Notes:          nullString(req.Notes),
	}

	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("title is already on the wishlist").WithCause(err)
		}
		return nil, apperrors.DatabaseError("failed to create wishlist entry").WithCause(err)
	}

	s.repo.AppendLog(ctx, created.ID, db.LogLevelInfo, "entry added", nil)
	s.log.Info(ctx, "wishlist entry added", map[string]interface{}{
		"wishlist_id": created.ID,
		"title":       created.Title,
	})
	return created, nil
}

// Get returns one entry
func (s *Service) Get(ctx context.Context, id int64) (*db.WishlistEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, db.ErrWishlistNotFound) {
			return nil, apperrors.WishlistNotFound()
		}
		return nil, err
	}
	return entry, nil
}

// List returns entries matching the filter
func (s *Service) List(ctx context.Context, filter db.ListFilter) ([]*db.WishlistEntry, error) {
	return s.repo.List(ctx, filter)
}

// Update applies a partial update to an entry
func (s *Service) Update(ctx context.Context, id int64, fields db.UpdateFields) (*db.WishlistEntry, error) {
	if fields.Priority != nil && (*fields.Priority < 1 || *fields.Priority > 5) {
		return nil, apperrors.ValidationError("priority must be between 1 and 5")
	}
	if fields.Status != nil {
		switch *fields.Status {
		case db.WishlistStatusWanted, db.WishlistStatusFound, db.WishlistStatusDownloading, db.WishlistStatusCompleted:
		default:
			return nil, apperrors.ValidationError("unknown wishlist status: " + *fields.Status)
		}
	}

	entry, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		if apperrors.Is(err, db.ErrWishlistNotFound) {
			return nil, apperrors.WishlistNotFound()
		}
		return nil, err
	}
	return entry, nil
}

// Remove deletes an entry; its matches and log cascade
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if apperrors.Is(err, db.ErrWishlistNotFound) {
			return apperrors.WishlistNotFound()
		}
		return err
	}
	return nil
}

// Matches returns the audit trail of matches for an entry
func (s *Service) Matches(ctx context.Context, id int64) ([]*db.WishlistMatch, error) {
	return s.repo.ListMatches(ctx, id)
}

// Log returns the audit log for an entry
func (s *Service) Log(ctx context.Context, id int64, limit int) ([]*db.WishlistLogEntry, error) {
	return s.repo.ListLog(ctx, id, limit)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
