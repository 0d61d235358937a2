package http

import (
	"errors"
	"net/http"

	"hamyon/internal/core"
	"hamyon/internal/log"
	"hamyon/internal/middleware/auth"
)

// writeError maps err to a status code and writes the error envelope.
// Unexpected errors are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.Is(err, core.ErrInsufficientFunds):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	case errors.As(err, &ve):
		FieldError(ve.Field, ve.Error()).Write(w)
	case errors.Is(err, core.ErrInvalidCredentials):
		ErrorResponse(http.StatusUnauthorized, core.ErrInvalidCredentials.Error()).Write(w)
	case errors.Is(err, core.ErrUnauthorized):
		UnauthorizedError().Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("not found").Write(w)
	case errors.Is(err, core.ErrConflict):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	default:
		fields := log.NewFields().WithError(err).WithUser(auth.UserID(r.Context()))
		fields[log.FieldMethod] = r.Method
		fields[log.FieldPath] = r.URL.Path
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, operationFor(r.Method), log.ErrorTypeInternal, fields)
		InternalServerError().Write(w)
	}
}

// badRequest answers an unreadable body.
func badRequest(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large").Write(w)
		return
	}
	BadRequestError(err.Error()).Write(w)
}

func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return log.OpCreate
	case http.MethodPut, http.MethodPatch:
		return log.OpUpdate
	case http.MethodDelete:
		return log.OpDelete
	}
	return log.OpRead
}

// parseBody reads the request body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		badRequest(w, err)
		return nil, false
	}
	return p, true
}

// userID is the authenticated caller. The auth middleware guarantees it on
// every non-public route.
func userID(r *http.Request) int64 {
	return auth.UserID(r.Context())
}
