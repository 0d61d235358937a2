package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hamyon/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var seenID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	tests := []struct {
		name       string
		path       string
		incomingID string
		wantID     string
		wantStatus int
	}{
		{name: "generated id", path: "/", wantStatus: http.StatusOK},
		{name: "incoming id kept", path: "/", incomingID: "abc-123", wantID: "abc-123", wantStatus: http.StatusOK},
		{name: "bad incoming id replaced", path: "/", incomingID: "bad id\n", wantStatus: http.StatusOK},
		{name: "client error", path: "/missing", wantStatus: http.StatusNotFound},
		{name: "server error", path: "/fail", wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.incomingID != "" {
				req.Header.Set(HeaderRequestID, tt.incomingID)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			got := rec.Header().Get(HeaderRequestID)
			if got == "" || got != seenID {
				t.Fatalf("response id %q, handler saw %q", got, seenID)
			}
			if tt.wantID != "" && got != tt.wantID {
				t.Fatalf("request id = %q, want %q", got, tt.wantID)
			}
			if tt.wantID == "" && !strings.HasPrefix(got, "req_") {
				t.Fatalf("expected generated id, got %q", got)
			}
		})
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 5 || metrics.ClientErrors != 1 || metrics.ServerErrors != 1 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
	if !strings.Contains(buf.String(), `"msg":"inside handler"`) || !strings.Contains(buf.String(), `"request_id":"abc-123"`) {
		t.Fatalf("handler log line missing request id:\n%s", buf.String())
	}
}
