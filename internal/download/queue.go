package download

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/logger"
)

// Queue state values. Exactly one job executes at a time system-wide: the
// busy state is the mutual-exclusion point for transfers.
const (
	stateIdle = "idle"
	stateBusy = "busy"
)

// Queue is the in-memory FIFO of pending download jobs, backed by the job
// store. Jobs execute strictly in arrival order on a single worker
// goroutine; priority only influences the order in which callers enqueue.
type Queue struct {
	store  JobStore
	runner Runner
	events EventPublisher
	log    *logger.Logger

	mu      sync.Mutex
	pending []*entry
	active  *entry
	state   string

	wake chan struct{}
	done chan struct{}
}

// NewQueue creates a queue. events may be nil.
func NewQueue(store JobStore, runner Runner, events EventPublisher) *Queue {
	return &Queue{
		store:  store,
		runner: runner,
		events: events,
		log:    logger.Default().WithComponent("queue"),
		state:  stateIdle,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the worker loop and reloads any queued rows left over from
// a previous run.
func (q *Queue) Start(ctx context.Context) error {
	jobs, err := q.store.ListByStatus(ctx, db.JobStatusQueued)
	if err != nil {
		return err
	}

	q.mu.Lock()
	for _, job := range jobs {
		q.pending = append(q.pending, &entry{job: job})
	}
	n := len(q.pending)
	q.mu.Unlock()

	if n > 0 {
		q.log.Info(ctx, "restored pending jobs from store", map[string]interface{}{"count": n})
	}

	go q.run()
	q.signal()
	return nil
}

// Stop terminates the worker loop after the current job settles
func (q *Queue) Stop() {
	close(q.done)
}

// Enqueue appends already-persisted jobs to the pending list and wakes the
// worker if it is idle. Jobs must be rows the store accepted; duplicate
// submissions never reach this point.
func (q *Queue) Enqueue(jobs []*db.DownloadJob) {
	if len(jobs) == 0 {
		return
	}

	q.mu.Lock()
	for _, job := range jobs {
		q.pending = append(q.pending, &entry{job: job})
	}
	q.mu.Unlock()

	if q.events != nil {
		ctx := context.Background()
		for _, job := range jobs {
			q.events.PublishJobStatus(ctx, job)
		}
	}

	q.signal()
}

// Pending returns the number of jobs waiting to execute
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a job is currently executing
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state == stateBusy
}

// Remove cancels and deletes a job wherever it currently is: executing (the
// transfer process is killed), pending (dropped from the list), or already
// settled. The persisted row, any file at its resolved path, and the file's
// now-possibly-empty parent directory are all removed. Safe to call
// concurrently with processing of the same id.
func (q *Queue) Remove(ctx context.Context, jobID int64) error {
	job, err := q.store.GetByID(ctx, jobID)
	if err != nil {
		if apperrors.Is(err, db.ErrJobNotFound) {
			return apperrors.JobNotFound()
		}
		return err
	}

	q.mu.Lock()
	if q.active != nil && q.active.job.ID == jobID {
		// Kill the transfer; the executor observes the deleted row on exit
		// and treats the termination as cleanup, not failure.
		if q.active.cancel != nil {
			if err := q.active.cancel.Cancel(); err != nil {
				q.log.Warn(ctx, "failed to cancel transfer process", map[string]interface{}{
					"job_id": jobID,
					"error":  err.Error(),
				})
			}
		}
	} else {
		for i, e := range q.pending {
			if e.job.ID == jobID {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
	}
	q.mu.Unlock()

	if job.Filepath.Valid && job.Filepath.String != "" {
		removeArtifact(ctx, q.log, job.Filepath.String)
	}

	if err := q.store.Delete(ctx, jobID); err != nil && !apperrors.Is(err, db.ErrJobNotFound) {
		return err
	}

	q.log.Info(ctx, "job removed", map[string]interface{}{"job_id": jobID, "status": job.Status})
	return nil
}

// signal wakes the worker without blocking; a pending wakeup is enough
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run is the worker loop: after each job settles it pulls the next pending
// job until the queue drains, then goes idle until the next wakeup.
func (q *Queue) run() {
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}

		for {
			select {
			case <-q.done:
				return
			default:
			}

			e := q.next()
			if e == nil {
				break
			}
			q.execute(e)
		}
	}
}

// next pops the head of the pending list and flips the queue to busy.
// Returns nil when the queue is empty, flipping back to idle.
func (q *Queue) next() *entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		q.state = stateIdle
		q.active = nil
		return nil
	}

	e := q.pending[0]
	q.pending = q.pending[1:]
	q.active = e
	q.state = stateBusy
	return e
}

// execute runs one job. A single job's failure never blocks the loop; the
// handle is cleared unconditionally.
func (q *Queue) execute(e *entry) {
	ctx := context.Background()

	err := q.runner.Execute(ctx, e.job, func(c Cancelable) {
		q.mu.Lock()
		if q.active == e {
			e.cancel = c
		}
		q.mu.Unlock()
	})
	if err != nil {
		q.log.Error(ctx, "job execution failed", err, map[string]interface{}{"job_id": e.job.ID})
	}

	q.mu.Lock()
	if q.active == e {
		q.active = nil
	}
	e.cancel = nil
	q.mu.Unlock()
}

// removeArtifact deletes a downloaded file and, when it is left empty, the
// parent directory created for it.
func removeArtifact(ctx context.Context, log *logger.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn(ctx, "failed to remove downloaded file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return
	}

	// os.Remove refuses non-empty directories, which is exactly the
	// behavior wanted here.
	dir := filepath.Dir(path)
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		log.Debug(ctx, "parent directory not empty, keeping it", map[string]interface{}{"dir": dir})
	}
}
