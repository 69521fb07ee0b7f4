package download

import (
	"context"
	"testing"

	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/metadata"
)

type fakeCreds struct {
	err error
}

func (c *fakeCreds) Credentials(ctx context.Context) (metadata.Credentials, error) {
	if c.err != nil {
		return metadata.Credentials{}, c.err
	}
	return metadata.Credentials{BaseURL: "http://provider", Username: "u", Password: "p"}, nil
}

func newTestService(store *memStore, creds *fakeCreds) *Service {
	// The queue is never started: submissions just accumulate as pending.
	queue := NewQueue(store, &scriptRunner{}, nil)
	return NewService(store, queue, creds)
}

func TestService_SubmitMovie(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeCreds{})

	created, err := service.Submit(context.Background(), 42, db.SourceKindMovie, []EpisodeRequest{
		{ID: 42, Filename: "Dune"},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(created) != 1 {
		t.Fatalf("Expected 1 job created, got %d", len(created))
	}
	if created[0].Status != db.JobStatusQueued {
		t.Errorf("Expected status queued, got %s", created[0].Status)
	}
	if created[0].EpisodeID != nil {
		t.Error("Movie jobs must not carry an episode id")
	}
	if service.Queue().Pending() != 1 {
		t.Errorf("Expected 1 pending job, got %d", service.Queue().Pending())
	}
}

func TestService_SubmitEpisodes(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeCreds{})

	created, err := service.Submit(context.Background(), 7, db.SourceKindEpisode, []EpisodeRequest{
		{ID: 101, Filename: "Severance S01E01"},
		{ID: 102, Filename: "Severance S01E02"},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(created) != 2 {
		t.Fatalf("Expected 2 jobs created, got %d", len(created))
	}
	for _, job := range created {
		if job.EpisodeID == nil {
			t.Error("Episode jobs must carry an episode id")
		}
	}
}

func TestService_SubmitDuplicateIgnored(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeCreds{})

	request := []EpisodeRequest{{ID: 42, Filename: "Dune"}}

	first, err := service.Submit(context.Background(), 42, db.SourceKindMovie, request)
	if err != nil {
		t.Fatalf("First submit failed: %v", err)
	}
	second, err := service.Submit(context.Background(), 42, db.SourceKindMovie, request)
	if err != nil {
		t.Fatalf("Duplicate submit must not error: %v", err)
	}

	if len(first) != 1 {
		t.Errorf("Expected 1 job from first submission, got %d", len(first))
	}
	if len(second) != 0 {
		t.Errorf("Expected 0 jobs from duplicate submission, got %d", len(second))
	}
	if service.Queue().Pending() != 1 {
		t.Errorf("Expected a single pending job, got %d", service.Queue().Pending())
	}
}

func TestService_SubmitValidation(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeCreds{})

	if _, err := service.Submit(context.Background(), 1, "album", []EpisodeRequest{{ID: 1}}); err == nil {
		t.Error("Expected error for unknown source kind")
	}
	if _, err := service.Submit(context.Background(), 1, db.SourceKindMovie, nil); err == nil {
		t.Error("Expected error for empty episode list")
	}
}

func TestService_SubmitFailsFastWithoutCredentials(t *testing.T) {
	store := newMemStore()
	service := newTestService(store, &fakeCreds{err: apperrors.MissingCredentials("provider_url")})

	_, err := service.Submit(context.Background(), 42, db.SourceKindMovie, []EpisodeRequest{
		{ID: 42, Filename: "Dune"},
	})
	if err == nil {
		t.Fatal("Expected error when credentials are missing")
	}

	var appErr *apperrors.AppError
	if !apperrors.As(err, &appErr) || appErr.Code != apperrors.CodeMissingCredentials {
		t.Errorf("Expected missing credentials error, got %v", err)
	}

	if len(store.jobs) != 0 {
		t.Errorf("No rows may be created on a failed validation, got %d", len(store.jobs))
	}
}
