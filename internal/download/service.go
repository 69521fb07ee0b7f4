package download

import (
	"context"

	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/logger"
	"github.com/streamvault/backend/internal/metadata"
)

// CredentialsChecker verifies provider credentials exist before any job is
// created. Missing credentials are a configuration error surfaced to the
// caller synchronously.
type CredentialsChecker interface {
	Credentials(ctx context.Context) (metadata.Credentials, error)
}

// EpisodeRequest is one file to download within a submission. For movies
// the id equals the source id.
type EpisodeRequest struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

// Service is the download subsystem facade: submission, cancellation and
// job listing.
type Service struct {
	store JobStore
	queue *Queue
	creds CredentialsChecker
	log   *logger.Logger
}

func NewService(store JobStore, queue *Queue, creds CredentialsChecker) *Service {
	return &Service{
		store: store,
		queue: queue,
		creds: creds,
		log:   logger.Default().WithComponent("download"),
	}
}

// Queue returns the underlying job queue
func (s *Service) Queue() *Queue {
	return s.queue
}

// Submit accepts a batch of episodes for one source item, persists one job
// per episode and enqueues the new rows. Duplicate submissions are ignored,
// not errors: the returned slice holds only the jobs actually created.
// Completion is asynchronous.
func (s *Service) Submit(ctx context.Context, sourceID int64, sourceKind string, episodes []EpisodeRequest) ([]*db.DownloadJob, error) {
	if sourceKind != db.SourceKindMovie && sourceKind != db.SourceKindEpisode {
		return nil, apperrors.ValidationError("unknown source kind: " + sourceKind)
	}
	if len(episodes) == 0 {
		return nil, apperrors.ValidationError("submission contains no episodes")
	}

	// Fail fast before creating any row when the provider is unconfigured.
	if _, err := s.creds.Credentials(ctx); err != nil {
		return nil, err
	}

	var created []*db.DownloadJob
	for _, ep := range episodes {
		var episodeID *int64
		if sourceKind == db.SourceKindEpisode {
			id := ep.ID
			episodeID = &id
		}

		job, ok, err := s.store.Create(ctx, sourceID, sourceKind, episodeID, ep.Filename)
		if err != nil {
			return nil, apperrors.DatabaseError("failed to create download job").WithCause(err)
		}
		if !ok {
			s.log.Debug(ctx, "duplicate submission ignored", map[string]interface{}{
				"source_id":   sourceID,
				"source_kind": sourceKind,
				"episode_id":  ep.ID,
			})
			continue
		}
		created = append(created, job)
	}

	s.queue.Enqueue(created)

	s.log.Info(ctx, "jobs submitted", map[string]interface{}{
		"source_id": sourceID,
		"requested": len(episodes),
		"created":   len(created),
	})
	return created, nil
}

// Cancel removes a job, killing its transfer if one is running
func (s *Service) Cancel(ctx context.Context, jobID int64) error {
	return s.queue.Remove(ctx, jobID)
}

// ListRecent returns the most recently created jobs, newest first
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*db.DownloadJob, error) {
	return s.store.ListRecent(ctx, limit)
}
