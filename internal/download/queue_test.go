package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streamvault/backend/internal/db"
)

// memStore is an in-memory JobStore for tests, mirroring the repository's
// duplicate handling.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*db.DownloadJob
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[int64]*db.DownloadJob)}
}

func (s *memStore) Create(ctx context.Context, sourceID int64, sourceKind string, episodeID *int64, filename string) (*db.DownloadJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.SourceID == sourceID && j.SourceKind == sourceKind && episodeIDEqual(j.EpisodeID, episodeID) {
			return nil, false, nil
		}
	}

	s.nextID++
	job := &db.DownloadJob{
		ID:         s.nextID,
		SourceID:   sourceID,
		SourceKind: sourceKind,
		EpisodeID:  episodeID,
		Filename:   filename,
		Status:     db.JobStatusQueued,
		CreatedAt:  time.Now(),
	}
	s.jobs[job.ID] = job
	return job, true, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*db.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, db.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *memStore) ListByStatus(ctx context.Context, status string) ([]*db.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.DownloadJob
	for id := int64(1); id <= s.nextID; id++ {
		if job, ok := s.jobs[id]; ok && job.Status == status {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) ListRecent(ctx context.Context, limit int) ([]*db.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.DownloadJob
	for id := s.nextID; id >= 1 && len(out) < limit; id-- {
		if job, ok := s.jobs[id]; ok {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id int64, status string, progress int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return db.ErrJobNotFound
	}
	job.Status = status
	job.Progress = progress
	if errMsg != "" {
		job.Error.String = errMsg
		job.Error.Valid = true
	} else {
		job.Error.Valid = false
	}
	return nil
}

func (s *memStore) SetFile(ctx context.Context, id int64, filename, filepath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return db.ErrJobNotFound
	}
	job.Filename = filename
	job.Filepath.String = filepath
	job.Filepath.Valid = true
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return db.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

func episodeIDEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// scriptRunner records execution order and can block mid-job
type scriptRunner struct {
	mu       sync.Mutex
	executed []int64

	started chan int64    // receives each job id as execution begins
	release chan struct{} // when non-nil, execution blocks until closed
}

func (r *scriptRunner) Execute(ctx context.Context, job *db.DownloadJob, register func(Cancelable)) error {
	if r.started != nil {
		r.started <- job.ID
	}
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.executed = append(r.executed, job.ID)
	r.mu.Unlock()
	return nil
}

func (r *scriptRunner) executedIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.executed...)
}

func createJob(t *testing.T, store *memStore, sourceID int64) *db.DownloadJob {
	t.Helper()
	job, ok, err := store.Create(context.Background(), sourceID, db.SourceKindMovie, nil, "file")
	if err != nil || !ok {
		t.Fatalf("Failed to create job for source %d: ok=%v err=%v", sourceID, ok, err)
	}
	return job
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestQueue_ExecutesInFIFOOrder(t *testing.T) {
	store := newMemStore()
	runner := &scriptRunner{}
	queue := NewQueue(store, runner, nil)

	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start queue: %v", err)
	}
	defer queue.Stop()

	var jobs []*db.DownloadJob
	for i := int64(1); i <= 3; i++ {
		jobs = append(jobs, createJob(t, store, i))
	}
	queue.Enqueue(jobs)

	waitFor(t, 2*time.Second, func() bool { return len(runner.executedIDs()) == 3 })

	ids := runner.executedIDs()
	for i, want := range []int64{1, 2, 3} {
		if ids[i] != want {
			t.Fatalf("Expected execution order [1 2 3], got %v", ids)
		}
	}
}

func TestQueue_SingleJobExecutesAtATime(t *testing.T) {
	store := newMemStore()
	runner := &scriptRunner{
		started: make(chan int64, 3),
		release: make(chan struct{}),
	}
	queue := NewQueue(store, runner, nil)

	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start queue: %v", err)
	}
	defer queue.Stop()

	var jobs []*db.DownloadJob
	for i := int64(1); i <= 3; i++ {
		jobs = append(jobs, createJob(t, store, i))
	}
	queue.Enqueue(jobs)

	// The first job starts and blocks; the others must stay pending.
	<-runner.started

	waitFor(t, time.Second, func() bool { return queue.Busy() })
	if got := queue.Pending(); got != 2 {
		t.Errorf("Expected 2 pending jobs while one executes, got %d", got)
	}

	select {
	case id := <-runner.started:
		t.Fatalf("Job %d started while another was executing", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	<-runner.started
	<-runner.started

	waitFor(t, 2*time.Second, func() bool {
		return len(runner.executedIDs()) == 3 && !queue.Busy()
	})
}

func TestQueue_StartRestoresQueuedRows(t *testing.T) {
	store := newMemStore()
	createJob(t, store, 1)
	createJob(t, store, 2)

	runner := &scriptRunner{}
	queue := NewQueue(store, runner, nil)

	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start queue: %v", err)
	}
	defer queue.Stop()

	waitFor(t, 2*time.Second, func() bool { return len(runner.executedIDs()) == 2 })
}

func TestQueue_RemovePendingJob(t *testing.T) {
	store := newMemStore()
	runner := &scriptRunner{
		started: make(chan int64, 3),
		release: make(chan struct{}),
	}
	queue := NewQueue(store, runner, nil)

	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start queue: %v", err)
	}
	defer queue.Stop()

	first := createJob(t, store, 1)
	second := createJob(t, store, 2)
	third := createJob(t, store, 3)
	queue.Enqueue([]*db.DownloadJob{first, second, third})

	// Hold the first job, then drop the second while it is still pending.
	<-runner.started
	if err := queue.Remove(context.Background(), second.ID); err != nil {
		t.Fatalf("Failed to remove pending job: %v", err)
	}

	if _, err := store.GetByID(context.Background(), second.ID); !errors.Is(err, db.ErrJobNotFound) {
		t.Errorf("Expected removed job's row deleted, got err=%v", err)
	}

	close(runner.release)
	waitFor(t, 2*time.Second, func() bool { return len(runner.executedIDs()) == 2 })

	for _, id := range runner.executedIDs() {
		if id == second.ID {
			t.Error("Removed job should never execute")
		}
	}
}

// cancelRunner blocks until its registered handle is canceled
type cancelRunner struct {
	canceled chan struct{}
}

type cancelFunc func() error

func (f cancelFunc) Cancel() error { return f() }

func (r *cancelRunner) Execute(ctx context.Context, job *db.DownloadJob, register func(Cancelable)) error {
	register(cancelFunc(func() error {
		close(r.canceled)
		return nil
	}))
	<-r.canceled
	return errors.New("process killed")
}

func TestQueue_RemoveActiveJobCancelsTransfer(t *testing.T) {
	store := newMemStore()
	runner := &cancelRunner{canceled: make(chan struct{})}
	queue := NewQueue(store, runner, nil)

	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start queue: %v", err)
	}
	defer queue.Stop()

	job := createJob(t, store, 1)
	queue.Enqueue([]*db.DownloadJob{job})

	waitFor(t, time.Second, func() bool { return queue.Busy() })

	if err := queue.Remove(context.Background(), job.ID); err != nil {
		t.Fatalf("Failed to remove active job: %v", err)
	}

	select {
	case <-runner.canceled:
	case <-time.After(time.Second):
		t.Fatal("Remove did not cancel the running transfer")
	}

	if _, err := store.GetByID(context.Background(), job.ID); !errors.Is(err, db.ErrJobNotFound) {
		t.Errorf("Expected job row deleted, got err=%v", err)
	}

	waitFor(t, time.Second, func() bool { return !queue.Busy() })
}

func TestQueue_RemoveUnknownJob(t *testing.T) {
	store := newMemStore()
	queue := NewQueue(store, &scriptRunner{}, nil)

	err := queue.Remove(context.Background(), 999)
	if err == nil {
		t.Fatal("Expected error removing unknown job")
	}
}
