package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"hamyon/internal/services"
)

type fakeParser struct{}

// ParseToken accepts tokens of the form "ok-<uid>".
func (fakeParser) ParseToken(raw string) (*services.Claims, error) {
	if len(raw) > 3 && raw[:3] == "ok-" {
		id, err := strconv.ParseInt(raw[3:], 10, 64)
		if err == nil {
			return &services.Claims{UserID: id, Username: "u"}, nil
		}
	}
	return nil, errors.New("bad token")
}

func TestMiddleware(t *testing.T) {
	m := New(fakeParser{}, nil, "/users/login", "/healthz")
	var gotUID int64
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name    string
		path    string
		header  string
		cookie  string
		want    int
		wantUID int64
	}{
		{name: "public path", path: "/users/login", want: http.StatusOK},
		{name: "missing token", path: "/wallets", want: http.StatusUnauthorized},
		{name: "bearer header", path: "/wallets", header: "Bearer ok-7", want: http.StatusOK, wantUID: 7},
		{name: "lowercase scheme", path: "/wallets", header: "bearer ok-8", want: http.StatusOK, wantUID: 8},
		{name: "cookie", path: "/wallets", cookie: "ok-9", want: http.StatusOK, wantUID: 9},
		{name: "basic auth scheme", path: "/wallets", header: "Basic ok-7", want: http.StatusUnauthorized},
		{name: "invalid token", path: "/wallets", header: "Bearer nope", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUID = 0
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if gotUID != tt.wantUID {
				t.Fatalf("user id = %d, want %d", gotUID, tt.wantUID)
			}
		})
	}
}

func TestCustomUnauthorized(t *testing.T) {
	called := false
	m := New(fakeParser{}, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	m.Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if !called || rec.Code != http.StatusTeapot {
		t.Fatalf("custom handler not used: called=%v status=%d", called, rec.Code)
	}
}
