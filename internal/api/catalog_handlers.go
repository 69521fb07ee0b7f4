package api

import (
	"net/http"
	"strconv"

	"github.com/streamvault/backend/internal/catalog"
	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
)

type CatalogHandlers struct {
	syncer *catalog.Syncer
}

func NewCatalogHandlers(syncer *catalog.Syncer) *CatalogHandlers {
	return &CatalogHandlers{syncer: syncer}
}

// CatalogItemResponse is the wire form of a mirrored catalog row
type CatalogItemResponse struct {
	ID          int64  `json:"id"`
	ProviderID  int64  `json:"provider_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	TMDBID      int64  `json:"tmdb_id,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
}

func catalogItemResponse(item *db.CatalogItem) CatalogItemResponse {
	resp := CatalogItemResponse{
		ID:         item.ID,
		ProviderID: item.ProviderID,
		Name:       item.Name,
		Kind:       item.Kind,
	}
	if item.TMDBID.Valid {
		resp.TMDBID = item.TMDBID.Int64
	}
	if item.ReleaseDate.Valid {
		resp.ReleaseDate = item.ReleaseDate.String
	}
	return resp
}

// Sync handles POST /api/v1/catalog/sync. The run is synchronous; large
// catalogs can take a while because of provider rate limiting.
func (h *CatalogHandlers) Sync(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	result, err := h.syncer.Run(r.Context())
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, result)
}

// Get handles GET /api/v1/catalog/{kind}/{provider_id}
func (h *CatalogHandlers) Get(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	kind := r.PathValue("kind")
	if kind != db.CatalogKindMovie && kind != db.CatalogKindSeries {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("kind must be movie or series"))
		return
	}

	providerID, err := strconv.ParseInt(r.PathValue("provider_id"), 10, 64)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("invalid provider id"))
		return
	}

	item, err := h.syncer.Get(r.Context(), providerID, kind)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, catalogItemResponse(item))
}
