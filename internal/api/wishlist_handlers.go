package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/wishlist"
)

type WishlistHandlers struct {
	service *wishlist.Service
	engine  *wishlist.Engine
}

func NewWishlistHandlers(service *wishlist.Service, engine *wishlist.Engine) *WishlistHandlers {
	return &WishlistHandlers{service: service, engine: engine}
}

// EntryResponse is the wire form of a wishlist entry
type EntryResponse struct {
	ID             int64   `json:"id"`
	TMDBID         int64   `json:"tmdb_id"`
	MediaType      string  `json:"media_type"`
	Title          string  `json:"title"`
	OriginalTitle  string  `json:"original_title,omitempty"`
	ReleaseDate    string  `json:"release_date,omitempty"`
	PosterURL      string  `json:"poster_url,omitempty"`
	Overview       string  `json:"overview,omitempty"`
	Genres         string  `json:"genres,omitempty"`
	Rating         float64 `json:"rating,omitempty"`
	Status         string  `json:"status"`
	Priority       int     `json:"priority"`
	AutoDownload   bool    `json:"auto_download"`
	SearchKeywords string  `json:"search_keywords,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	AddedAt        string  `json:"added_at"`
	FoundAt        string  `json:"found_at,omitempty"`
	LastCheck      string  `json:"last_check,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func entryResponse(e *db.WishlistEntry) EntryResponse {
	resp := EntryResponse{
		ID:           e.ID,
		TMDBID:       e.TMDBID,
		MediaType:    e.MediaType,
		Title:        e.Title,
		Status:       e.Status,
		Priority:     e.Priority,
		AutoDownload: e.AutoDownload,
		AddedAt:      e.AddedAt.Format(timeLayout),
	}
	if e.OriginalTitle.Valid {
		resp.OriginalTitle = e.OriginalTitle.String
	}
	if e.ReleaseDate.Valid {
		resp.ReleaseDate = e.ReleaseDate.String
	}
	if e.PosterURL.Valid {
		resp.PosterURL = e.PosterURL.String
	}
	if e.Overview.Valid {
		resp.Overview = e.Overview.String
	}
	if e.Genres.Valid {
		resp.Genres = e.Genres.String
	}
	if e.Rating.Valid {
		resp.Rating = e.Rating.Float64
	}
	if e.SearchKeywords.Valid {
		resp.SearchKeywords = e.SearchKeywords.String
	}
	if e.Notes.Valid {
		resp.Notes = e.Notes.String
	}
	if e.FoundAt != nil {
		resp.FoundAt = e.FoundAt.Format(timeLayout)
	}
	if e.LastCheck != nil {
		resp.LastCheck = e.LastCheck.Format(timeLayout)
	}
	return resp
}

// Add handles POST /api/v1/wishlist
func (h *WishlistHandlers) Add(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req wishlist.AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.TMDBID <= 0 {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("tmdb_id is required"))
		return
	}

	entry, err := h.service.Add(r.Context(), req)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusCreated, entryResponse(entry))
}

// List handles GET /api/v1/wishlist
func (h *WishlistHandlers) List(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	filter := db.ListFilter{
		Status:    r.URL.Query().Get("status"),
		MediaType: r.URL.Query().Get("media_type"),
		SortBy:    r.URL.Query().Get("sort_by"),
	}
	if v := r.URL.Query().Get("priority"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Priority = n
		}
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	resp := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryResponse(e))
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{"entries": resp})
}

// Get handles GET /api/v1/wishlist/{id}
func (h *WishlistHandlers) Get(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := parseID(r)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, entryResponse(entry))
}

// UpdateRequest is the body for PATCH /api/v1/wishlist/{id}
type UpdateRequest struct {
	Priority       *int    `json:"priority,omitempty"`
	AutoDownload   *bool   `json:"auto_download,omitempty"`
	SearchKeywords *string `json:"search_keywords,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	Status         *string `json:"status,omitempty"`
}

// Update handles PATCH /api/v1/wishlist/{id}
func (h *WishlistHandlers) Update(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := parseID(r)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	entry, err := h.service.Update(r.Context(), id, db.UpdateFields{
		Priority:       req.Priority,
		AutoDownload:   req.AutoDownload,
		SearchKeywords: req.SearchKeywords,
		Notes:          req.Notes,
		Status:         req.Status,
	})
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, entryResponse(entry))
}

// Remove handles DELETE /api/v1/wishlist/{id}
func (h *WishlistHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := parseID(r)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	if err := h.service.Remove(r.Context(), id); err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]string{"status": "removed"})
}

// Matches handles GET /api/v1/wishlist/{id}/matches
func (h *WishlistHandlers) Matches(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := parseID(r)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	matches, err := h.service.Matches(r.Context(), id)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{"matches": matches})
}

// Log handles GET /api/v1/wishlist/{id}/log
func (h *WishlistHandlers) Log(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := parseID(r)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	log, err := h.service.Log(r.Context(), id, limit)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{"log": log})
}

// RunSweep handles POST /api/v1/wishlist/sweep
func (h *WishlistHandlers) RunSweep(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	result, err := h.engine.RunSweep(r.Context())
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, result)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, apperrors.ValidationError("invalid id")
	}
	return id, nil
}
