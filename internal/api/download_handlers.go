package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/streamvault/backend/internal/db"
	"github.com/streamvault/backend/internal/download"
	apperrors "github.com/streamvault/backend/internal/errors"
)

type DownloadHandlers struct {
	service *download.Service
}

func NewDownloadHandlers(service *download.Service) *DownloadHandlers {
	return &DownloadHandlers{service: service}
}

// SubmitRequest is the body for POST /api/v1/downloads
type SubmitRequest struct {
	SourceID   int64                     `json:"source_id"`
	SourceKind string                    `json:"source_kind"`
	Episodes   []download.EpisodeRequest `json:"episodes"`
}

// JobResponse is the wire form of a download job row
type JobResponse struct {
	ID        int64  `json:"id"`
	SourceID  int64  `json:"source_id"`
	Kind      string `json:"source_kind"`
	EpisodeID *int64 `json:"episode_id,omitempty"`
	Filename  string `json:"filename"`
	Filepath  string `json:"filepath,omitempty"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

func jobResponse(job *db.DownloadJob) JobResponse {
	resp := JobResponse{
		ID:        job.ID,
		SourceID:  job.SourceID,
		Kind:      job.SourceKind,
		EpisodeID: job.EpisodeID,
		Filename:  job.Filename,
		Status:    job.Status,
		Progress:  job.Progress,
		CreatedAt: job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if job.Filepath.Valid {
		resp.Filepath = job.Filepath.String
	}
	if job.Error.Valid {
		resp.Error = job.Error.String
	}
	return resp
}

// Submit handles POST /api/v1/downloads. Accepts and enqueues; completion
// is asynchronous.
func (h *DownloadHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.SourceID <= 0 {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("source_id is required"))
		return
	}

	created, err := h.service.Submit(r.Context(), req.SourceID, req.SourceKind, req.Episodes)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	resp := make([]JobResponse, 0, len(created))
	for _, job := range created {
		resp = append(resp, jobResponse(job))
	}
	apperrors.WriteJSON(w, requestID, http.StatusAccepted, map[string]any{"jobs": resp})
}

// Cancel handles DELETE /api/v1/downloads/{id}
func (h *DownloadHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("invalid job id"))
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]string{"status": "removed"})
}

// ListRecent handles GET /api/v1/downloads
func (h *DownloadHandlers) ListRecent(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	jobs, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, jobResponse(job))
	}
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{"jobs": resp})
}
