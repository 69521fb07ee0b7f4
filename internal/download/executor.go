package download

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/streamvault/backend/internal/db"
	apperrors "github.com/streamvault/backend/internal/errors"
	"github.com/streamvault/backend/internal/logger"
	"github.com/streamvault/backend/internal/metadata"
	"github.com/streamvault/backend/internal/metrics"
)

const (
	// Used when neither source carries a usable release date
	unknownYear = "UnknownYear"

	// Used when the provider reports no container format
	defaultExtension = "mp4"
)

// MetadataResolver supplies the combined provider/external-metadata fields
// and the direct-stream URL for a job's source item.
type MetadataResolver interface {
	Details(ctx context.Context, sourceKind string, sourceID int64, episodeID *int64) (*metadata.Details, error)
	StreamURL(ctx context.Context, sourceKind string, sourceID int64, episodeID *int64, ext string) (string, error)
}

// Executor resolves a job's destination and supervises one external
// transfer process for it. Progress is not granularly tracked: 0 until the
// process exits, 100 on success.
type Executor struct {
	store   JobStore
	meta    MetadataResolver
	events  EventPublisher
	root    string
	command string
	log     *logger.Logger
}

// NewExecutor creates an executor writing under root and invoking command
// as `command <source-url> <destination-path>`. events may be nil.
func NewExecutor(store JobStore, meta MetadataResolver, events EventPublisher, root, command string) *Executor {
	return &Executor{
		store:   store,
		meta:    meta,
		events:  events,
		root:    root,
		command: command,
		log:     logger.Default().WithComponent("executor"),
	}
}

// Execute runs one dequeued job end to end. register receives the process
// handle as soon as the transfer is launched so a concurrent Remove can
// kill it. A row deleted out from under the executor is treated as
// cancellation: cleanup only, no failed status.
func (e *Executor) Execute(ctx context.Context, job *db.DownloadJob, register func(Cancelable)) error {
	if err := e.setStatus(ctx, job, db.JobStatusDownloading, 0, ""); err != nil {
		if apperrors.Is(err, db.ErrJobNotFound) {
			return nil
		}
		return err
	}

	details, err := e.meta.Details(ctx, job.SourceKind, job.SourceID, job.EpisodeID)
	if err != nil {
		// Metadata is advisory for naming; the transfer itself decides
		// success. Fall back to the raw filename.
		e.log.Warn(ctx, "metadata lookup failed, using raw filename", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		details = &metadata.Details{}
	}

	title := details.TMDBTitle
	if title == "" {
		title = details.ProviderTitle
	}
	if title == "" {
		title = job.Filename
	}

	year := releaseYear(details.TMDBDate)
	if year == "" {
		year = releaseYear(details.ProviderDate)
	}
	if year == "" {
		year = unknownYear
	}

	section := "movies"
	if job.SourceKind == db.SourceKindEpisode {
		section = "series"
	}

	dir := filepath.Join(e.root, section, fmt.Sprintf("%s (%s)", SanitizeTitle(title), year))
	if job.SourceKind == db.SourceKindEpisode && details.Season > 0 {
		dir = filepath.Join(dir, fmt.Sprintf("Season %02d", details.Season))
	}

	ext := details.ContainerExt
	if ext == "" {
		ext = defaultExtension
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return e.failJob(ctx, job, apperrors.TransferError("failed to create destination directory").WithCause(err))
	}

	filename := SanitizeTitle(job.Filename) + "." + ext
	destPath := filepath.Join(dir, filename)

	// Persisting the resolved path before the transfer starts gives a
	// concurrent Remove a valid path to clean up.
	if err := e.store.SetFile(ctx, job.ID, filename, destPath); err != nil {
		if apperrors.Is(err, db.ErrJobNotFound) {
			return nil
		}
		return e.failJob(ctx, job, err)
	}

	sourceURL, err := e.meta.StreamURL(ctx, job.SourceKind, job.SourceID, job.EpisodeID, ext)
	if err != nil {
		return e.failJob(ctx, job, err)
	}

	e.log.Info(ctx, "starting transfer", map[string]interface{}{
		"job_id": job.ID,
		"dest":   destPath,
	})

	waitErr := e.runTransfer(ctx, job, sourceURL, destPath, register)

	// A removed row means the job was canceled mid-flight. Remove may have
	// run its cleanup before the transfer wrote the destination, so delete
	// whatever the process left behind before walking away.
	if _, err := e.store.GetByID(ctx, job.ID); err != nil {
		if apperrors.Is(err, db.ErrJobNotFound) {
			removeArtifact(ctx, e.log, destPath)
			e.log.Info(ctx, "job removed during transfer, skipping status update", map[string]interface{}{"job_id": job.ID})
			return nil
		}
		return err
	}

	if waitErr != nil {
		return e.failJob(ctx, job, apperrors.TransferError("transfer process failed").WithCause(waitErr))
	}

	if err := e.setStatus(ctx, job, db.JobStatusCompleted, 100, ""); err != nil {
		if apperrors.Is(err, db.ErrJobNotFound) {
			removeArtifact(ctx, e.log, destPath)
			return nil
		}
		return err
	}

	metrics.IncrCounter("downloads_completed_total")
	e.log.Info(ctx, "transfer completed", map[string]interface{}{"job_id": job.ID})
	return nil
}

// runTransfer launches the external process and waits for it, streaming its
// output to the log without parsing it.
func (e *Executor) runTransfer(ctx context.Context, job *db.DownloadJob, sourceURL, destPath string, register func(Cancelable)) error {
	cmd := exec.Command(e.command, sourceURL, destPath)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	register(&processHandle{cmd: cmd})

	go e.streamOutput(ctx, job.ID, "stdout", stdout)
	go e.streamOutput(ctx, job.ID, "stderr", stderr)

	return cmd.Wait()
}

func (e *Executor) streamOutput(ctx context.Context, jobID int64, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		e.log.Debug(ctx, scanner.Text(), map[string]interface{}{
			"job_id": jobID,
			"stream": stream,
		})
	}
}

// failJob marks the job failed with the error message retained for
// inspection. Progress is left where it was. The queue loop continues
// regardless.
func (e *Executor) failJob(ctx context.Context, job *db.DownloadJob, cause error) error {
	metrics.IncrCounter("downloads_failed_total")
	e.log.Error(ctx, "job failed", cause, map[string]interface{}{"job_id": job.ID})

	if err := e.setStatus(ctx, job, db.JobStatusFailed, job.Progress, cause.Error()); err != nil && !apperrors.Is(err, db.ErrJobNotFound) {
		return err
	}
	return nil
}

func (e *Executor) setStatus(ctx context.Context, job *db.DownloadJob, status string, progress int, errMsg string) error {
	if err := e.store.UpdateStatus(ctx, job.ID, status, progress, errMsg); err != nil {
		return err
	}

	job.Status = status
	job.Progress = progress
	if e.events != nil {
		e.events.PublishJobStatus(ctx, job)
	}
	return nil
}

// processHandle makes a running transfer cancelable
type processHandle struct {
	cmd *exec.Cmd
}

func (h *processHandle) Cancel() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

var unsafeTitleChars = regexp.MustCompile(`[^\p{L}\p{N}_ \.\-]`)

// SanitizeTitle strips characters that are unsafe in filesystem names,
// keeping word characters, spaces, dots and dashes.
func SanitizeTitle(title string) string {
	return strings.TrimSpace(unsafeTitleChars.ReplaceAllString(title, ""))
}

// releaseYear extracts the leading year from a provider or metadata date
// string, or "" when the field is unusable.
func releaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	year := date[:4]
	for _, r := range year {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return year
}
