package db

import (
	"context"
	"database/sql"
	"errors"
)

var ErrJobNotFound = errors.New("download job not found")

type JobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, source_id, source_kind, episode_id, filename, filepath, status, progress, error, created_at`

func scanJob(scanner interface{ Scan(...any) error }) (*DownloadJob, error) {
	var j DownloadJob
	err := scanner.Scan(
		&j.ID, &j.SourceID, &j.SourceKind, &j.EpisodeID, &j.Filename,
		&j.Filepath, &j.Status, &j.Progress, &j.Error, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Create inserts a new queued job. Duplicate submissions for the same
// (source id, source kind, episode id) are ignored: the method returns
// (nil, false, nil) and no second row is written.
func (r *JobRepository) Create(ctx context.Context, sourceID int64, sourceKind string, episodeID *int64, filename string) (*DownloadJob, bool, error) {
	query := `
		INSERT INTO download_jobs (source_id, source_kind, episode_id, filename, status, progress)
		VALUES ($1, $2, $3, $4, $5, 0)
		ON CONFLICT (source_id, source_kind, COALESCE(episode_id, -1)) DO NOTHING
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRowContext(ctx, query, sourceID, sourceKind, episodeID, filename, JobStatusQueued))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// conflict: an equivalent job already exists
			return nil, false, nil
		}
		return nil, false, err
	}

	return job, true, nil
}

// GetByID retrieves a job by its ID
func (r *JobRepository) GetByID(ctx context.Context, id int64) (*DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListRecent returns the most recently created jobs, newest first
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]*DownloadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT ` + jobColumns + ` FROM download_jobs ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ListByStatus returns jobs with the given status, oldest first (FIFO order)
func (r *JobRepository) ListByStatus(ctx context.Context, status string) ([]*DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs WHERE status = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*DownloadJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// UpdateStatus sets the status, progress and error message of a job
func (r *JobRepository) UpdateStatus(ctx context.Context, id int64, status string, progress int, errMsg string) error {
	query := `UPDATE download_jobs SET status = $2, progress = $3, error = NULLIF($4, '') WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status, progress, errMsg)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// SetFile persists the resolved filename and filesystem path on a job row.
// This happens before the transfer starts so a concurrent removal always
// has a valid path to clean up.
func (r *JobRepository) SetFile(ctx context.Context, id int64, filename, filepath string) error {
	query := `UPDATE download_jobs SET filename = $2, filepath = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, filename, filepath)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Delete removes a job row. Returns ErrJobNotFound if no row existed.
func (r *JobRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM download_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ReconcileInterrupted moves jobs stranded in the downloading state back to
// queued. Called once at startup: a previous instance that died mid-transfer
// leaves such rows behind with no live process attached.
func (r *JobRepository) ReconcileInterrupted(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE download_jobs SET status = $1, progress = 0 WHERE status = $2`,
		JobStatusQueued, JobStatusDownloading,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
