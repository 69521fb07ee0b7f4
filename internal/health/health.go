package health

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/streamvault/backend/internal/errors"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Response represents the full health check response
type Response struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Checker probes the database, Redis and the media library root
type Checker struct {
	databaseCheck func(context.Context) error
	redisCheck    func(context.Context) error
	libraryCheck  func(context.Context) error
	checkTimeout  time.Duration
}

func NewChecker(db *sql.DB, rdb *redis.Client, downloadRoot string) *Checker {
	return &Checker{
		databaseCheck: db.PingContext,
		redisCheck: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		libraryCheck: libraryProbe(downloadRoot),
		checkTimeout: 5 * time.Second,
	}
}

// Check runs all component probes concurrently
func (c *Checker) Check(ctx context.Context) *Response {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	resp := &Response{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: make(map[string]ComponentHealth),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	probe := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		start := time.Now()
		err := fn(ctx)

		component := ComponentHealth{
			Status:   StatusHealthy,
			Duration: time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			component.Status = StatusUnhealthy
			component.Message = err.Error()
		}

		mu.Lock()
		resp.Components[name] = component
		if err != nil {
			resp.Status = StatusDegraded
		}
		mu.Unlock()
	}

	wg.Add(3)
	go probe("database", c.databaseCheck)
	go probe("redis", c.redisCheck)
	go probe("library", c.libraryCheck)
	wg.Wait()

	// The database is the single source of truth for job state; without
	// it nothing works.
	if resp.Components["database"].Status == StatusUnhealthy {
		resp.Status = StatusUnhealthy
	}

	return resp
}

// libraryProbe verifies the download root is writable
func libraryProbe(root string) func(context.Context) error {
	return func(ctx context.Context) error {
		probe := filepath.Join(root, ".health")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			return err
		}
		return os.Remove(probe)
	}
}

// Handler returns an HTTP handler serving the health response
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := c.Check(r.Context())

		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), status, resp)
	}
}
