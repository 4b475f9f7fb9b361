package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("4th request within a minute should be limited")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients are counted separately")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("10.0.0.1") {
		t.Fatal("counter should reset after a quiet minute")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newRateLimiter(10)
	defer rl.stop()
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("a")
	now = now.Add(9 * time.Minute)
	rl.allow("b")
	now = now.Add(2 * time.Minute)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}
	if rl.activeClients() != 1 {
		t.Fatalf("active clients = %d", rl.activeClients())
	}
	rl.stop()
	rl.stop()
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct", "203.0.113.5:4000", nil, "203.0.113.5"},
		{"untrusted proxy ignored", "203.0.113.5:4000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.5"},
		{"trusted proxy xff", "10.0.0.2:4000", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"}, "198.51.100.7"},
		{"trusted proxy real ip", "127.0.0.1:4000", map[string]string{"X-Real-IP": "198.51.100.8"}, "198.51.100.8"},
		{"garbage forwarded", "10.0.0.2:4000", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Fatalf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		target string
		agent  string
		want   bool
	}{
		{"/employee/bills", "Mozilla/5.0", false},
		{"/files/../../etc/passwd", "Mozilla/5.0", true},
		{"/?next=javascript:alert(1)", "Mozilla/5.0", true},
		{"/", "sqlmap/1.7", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com"+tt.target, nil)
		r.Header.Set("User-Agent", tt.agent)
		if got := detectSuspiciousRequest(r); got != tt.want {
			t.Errorf("%s (%s): got %v want %v", tt.target, tt.agent, got, tt.want)
		}
	}
}
