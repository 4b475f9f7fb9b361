package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.BillsUploaded.Inc()
	m.Exports.WithLabelValues(Result(nil)).Inc()
	m.Exports.WithLabelValues(Result(errors.New("x"))).Add(2)
	m.ObserveHTTP(http.MethodPost, "/bills", http.StatusCreated, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"billed_bills_uploaded_total 1",
		`billed_exports_total{result="error"} 2`,
		`billed_exports_total{result="ok"} 1`,
		`billed_http_requests_total{method="POST",route="/bills",status="201"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
