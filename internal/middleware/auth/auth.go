package auth

import (
	"context"
	"net/http"
	"strings"

	"hamyon/internal/log"
	"hamyon/internal/services"
)

// CookieName is the cookie that carries the token for browser clients.
const CookieName = "Bearer"

type contextKey string

const claimsKey contextKey = "claims"

// TokenParser validates a raw token and returns its claims.
type TokenParser interface {
	ParseToken(raw string) (*services.Claims, error)
}

// Middleware rejects requests without a valid token, except on public
// paths. Valid claims are stored in the request context.
type Middleware struct {
	parser       TokenParser
	public       map[string]bool
	unauthorized func(http.ResponseWriter, *http.Request)
}

// New returns the middleware. unauthorized writes the 401 response; a plain
// text one is used when it is nil.
func New(parser TokenParser, unauthorized func(http.ResponseWriter, *http.Request), publicPaths ...string) *Middleware {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &Middleware{parser: parser, public: public, unauthorized: unauthorized}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		raw := TokenFromRequest(r)
		if raw == "" {
			m.reject(w, r, "missing token")
			return
		}
		claims, err := m.parser.ParseToken(raw)
		if err != nil {
			m.reject(w, r, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		logger := log.FromContext(ctx).With(log.FieldUserID, claims.UserID)
		ctx = log.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).DebugContext(r.Context(),
		"Rejected unauthenticated request", log.FieldPath, r.URL.Path, "reason", reason)
	if m.unauthorized != nil {
		m.unauthorized(w, r)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// TokenFromRequest reads the Authorization header first, then the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(strings.TrimPrefix(c.Value, "Bearer "))
	}
	return ""
}

// ClaimsFrom returns the claims stored by Middleware.
func ClaimsFrom(ctx context.Context) (*services.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*services.Claims)
	return c, ok && c != nil
}

// UserID returns the authenticated user's id, or 0.
func UserID(ctx context.Context) int64 {
	if c, ok := ClaimsFrom(ctx); ok {
		return c.UserID
	}
	return 0
}

// WithClaims returns ctx carrying claims; used by tests of downstream
// handlers.
func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}
