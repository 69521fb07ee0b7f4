package download

import (
	"context"

	"github.com/streamvault/backend/internal/db"
)

// Cancelable is the capability to abort an in-flight transfer. The executor
// returns one when it launches the external process; the queue stores it on
// the active entry so Remove can reach it.
type Cancelable interface {
	Cancel() error
}

// entry is one in-memory queue slot. The persisted row is the source of
// truth; entries are reconstructable from queued rows.
type entry struct {
	job    *db.DownloadJob
	cancel Cancelable
}

// JobStore is the durable table of download jobs
type JobStore interface {
	Create(ctx context.Context, sourceID int64, sourceKind string, episodeID *int64, filename string) (*db.DownloadJob, bool, error)
	GetByID(ctx context.Context, id int64) (*db.DownloadJob, error)
	ListByStatus(ctx context.Context, status string) ([]*db.DownloadJob, error)
	ListRecent(ctx context.Context, limit int) ([]*db.DownloadJob, error)
	UpdateStatus(ctx context.Context, id int64, status string, progress int, errMsg string) error
	SetFile(ctx context.Context, id int64, filename, filepath string) error
	Delete(ctx context.Context, id int64) error
}

// EventPublisher receives job status transitions. Implementations must not
// block; publish failures never affect job state.
type EventPublisher interface {
	PublishJobStatus(ctx context.Context, job *db.DownloadJob)
}

// Runner executes one dequeued job to completion. register is called with
// the process handle once the transfer is launched, before waiting on it.
type Runner interface {
	Execute(ctx context.Context, job *db.DownloadJob, register func(Cancelable)) error
}
