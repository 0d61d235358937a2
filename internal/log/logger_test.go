package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewJSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})
	logger.Info("hello", FieldUserID, 7)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if line[FieldComponent] != ComponentLedger || line[FieldUserID] != float64(7) {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "text", Component: ComponentApp, Output: &buf}).With(FieldRequestID, "abc")
	logger.WithComponent(ComponentHTTP).Info("x")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=http") {
		t.Fatalf("expected a single http component, got %q", out)
	}
	if !strings.Contains(out, "request_id=abc") {
		t.Fatalf("expected request id to be kept, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "text", Output: &buf}).With(FieldRequestID, "req-1")

	FromContext(NewContext(context.Background(), logger)).Info("inside")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("expected request id in %q", buf.String())
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Fatalf("fallback component = %q", got)
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "text", Output: &buf}))
	r := httptest.NewRequest(http.MethodGet, "/wallets", nil)

	sl.LogHTTPEnd(context.Background(), r, 503, 12, "127.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("expected error level for 5xx, got %q", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "failed", errors.New("boom"), OpCreate, ErrorTypeDatabase, nil)
	if !strings.Contains(buf.String(), "error=boom") || !strings.Contains(buf.String(), "error_type=database_error") {
		t.Fatalf("unexpected error line %q", buf.String())
	}
}
