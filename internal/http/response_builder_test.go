package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestJSONResponseBuilder(t *testing.T) {
	tests := []struct {
		name       string
		build      *JSONResponseBuilder
		wantStatus int
		wantKeys   map[string]any
		absentKeys []string
	}{
		{
			name:       "success with data",
			build:      NewJSONResponse().Data(map[string]string{"name": "Cash"}),
			wantStatus: http.StatusOK,
			wantKeys:   map[string]any{"status": "success"},
			absentKeys: []string{"error", "page", "total"},
		},
		{
			name:       "created list page",
			build:      NewJSONResponse().Status(http.StatusCreated).Data([]int{}).Page(2, 10, 0),
			wantStatus: http.StatusCreated,
			wantKeys:   map[string]any{"status": "success", "page": float64(2), "page_size": float64(10), "total": float64(0)},
		},
		{
			name:       "field error",
			build:      FieldError("amount", "amount: invalid amount"),
			wantStatus: http.StatusUnprocessableEntity,
			wantKeys:   map[string]any{"status": "error", "field": "amount", "error": "amount: invalid amount"},
			absentKeys: []string{"data"},
		},
		{
			name:       "internal error hides details",
			build:      InternalServerError(),
			wantStatus: http.StatusInternalServerError,
			wantKeys:   map[string]any{"status": "error", "error": "internal server error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.build.Write(rec)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Fatalf("Content-Type = %q", ct)
			}
			body := decodeEnvelope(t, rec)
			for k, want := range tt.wantKeys {
				if body[k] != want {
					t.Errorf("%s = %v, want %v", k, body[k], want)
				}
			}
			for _, k := range tt.absentKeys {
				if _, ok := body[k]; ok {
					t.Errorf("unexpected key %s in %v", k, body)
				}
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(rec)
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, POST" {
		t.Fatalf("status=%d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}
}
