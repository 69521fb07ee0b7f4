package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testChecker(dbErr, redisErr, libErr error) *Checker {
	probe := func(err error) func(context.Context) error {
		return func(ctx context.Context) error { return err }
	}
	return &Checker{
		databaseCheck: probe(dbErr),
		redisCheck:    probe(redisErr),
		libraryCheck:  probe(libErr),
		checkTimeout:  time.Second,
	}
}

func TestChecker_AllHealthy(t *testing.T) {
	checker := testChecker(nil, nil, nil)

	resp := checker.Check(context.Background())

	if resp.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", resp.Status)
	}
	if len(resp.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(resp.Components))
	}
	for name, c := range resp.Components {
		if c.Status != StatusHealthy {
			t.Errorf("expected component %s healthy, got %s", name, c.Status)
		}
	}
}

func TestChecker_RedisDownIsDegraded(t *testing.T) {
	checker := testChecker(nil, errors.New("connection refused"), nil)

	resp := checker.Check(context.Background())

	if resp.Status != StatusDegraded {
		t.Errorf("expected degraded with redis down, got %s", resp.Status)
	}
	if resp.Components["redis"].Status != StatusUnhealthy {
		t.Errorf("expected redis component unhealthy, got %s", resp.Components["redis"].Status)
	}
}

func TestChecker_DatabaseDownIsUnhealthy(t *testing.T) {
	checker := testChecker(errors.New("connection refused"), nil, nil)

	resp := checker.Check(context.Background())

	if resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy with database down, got %s", resp.Status)
	}
}

func TestChecker_Handler(t *testing.T) {
	checker := testChecker(nil, nil, nil)

	rec := httptest.NewRecorder()
	checker.Handler()(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
}

func TestChecker_HandlerUnhealthyStatusCode(t *testing.T) {
	checker := testChecker(errors.New("down"), nil, nil)

	rec := httptest.NewRecorder()
	checker.Handler()(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
