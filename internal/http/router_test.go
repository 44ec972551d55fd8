package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"speako/internal/service/listener"
)

type fakeStatus struct {
	ready   bool
	session listener.Snapshot
}

func (f *fakeStatus) Ready() bool                { return f.ready }
func (f *fakeStatus) Session() listener.Snapshot { return f.session }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	status := &fakeStatus{}
	r := NewRouter(status, prometheus.NewRegistry())

	tests := []struct {
		name  string
		path  string
		ready bool
		code  int
		body  string
	}{
		{"liveness", "/v1/liveness", false, http.StatusOK, "ok"},
		{"not ready", "/v1/readiness", false, http.StatusServiceUnavailable, "not ready"},
		{"ready", "/v1/readiness", true, http.StatusOK, "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status.ready = tt.ready
			rec := get(t, r, tt.path)
			if rec.Code != tt.code || rec.Body.String() != tt.body {
				t.Errorf("GET %s = %d %q, want %d %q", tt.path, rec.Code, rec.Body.String(), tt.code, tt.body)
			}
		})
	}
}

func TestRouter_Session(t *testing.T) {
	status := &fakeStatus{session: listener.Snapshot{
		SessionID:  "abc",
		Language:   "es-MX",
		Listening:  true,
		Transcript: "hola mundo",
	}}
	r := NewRouter(status, prometheus.NewRegistry())

	rec := get(t, r, "/v1/session")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}

	var got listener.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != status.session {
		t.Errorf("got %+v, want %+v", got, status.session)
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "speako_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := get(t, NewRouter(&fakeStatus{}, reg), "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "speako_test_total 1") {
		t.Errorf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_NotFound(t *testing.T) {
	rec := get(t, NewRouter(&fakeStatus{}, prometheus.NewRegistry()), "/v1/hello")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
