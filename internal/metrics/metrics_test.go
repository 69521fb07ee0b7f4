package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncrCounter("downloads_completed_total")
	m.IncrCounter("downloads_completed_total")
	m.IncrCounter("downloads_failed_total")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler()(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "downloads_completed_total 2") {
		t.Errorf("Expected completed counter at 2, got:\n%s", body)
	}
	if !strings.Contains(body, "downloads_failed_total 1") {
		t.Errorf("Expected failed counter at 1, got:\n%s", body)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()
	m.RegisterGauge("download_queue_pending", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler()(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "download_queue_pending 3") {
		t.Errorf("Expected gauge sampled at scrape time, got:\n%s", body)
	}
	if !strings.Contains(body, "uptime_seconds") {
		t.Error("Expected uptime gauge in output")
	}
}

func TestMetrics_ConcurrentIncrements(t *testing.T) {
	m := New()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				m.IncrCounter("concurrent_total")
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "concurrent_total 1000") {
		t.Errorf("Expected 1000 increments, got:\n%s", rec.Body.String())
	}
}
