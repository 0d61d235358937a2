package http

import (
	"net/http"
	"time"

	"hamyon/internal/core"
	"hamyon/internal/middleware/auth"
	"hamyon/internal/services"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	u, token, err := s.auth.SignUp(r.Context(), services.SignUpInput{
		Username:    p.Get("username"),
		Email:       p.Get("email"),
		Password1:   p.Get("password1"),
		Password2:   p.Get("password2"),
		PhoneNumber: p.Get("phone_number"),
		Address:     p.Get("address"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeToken(w, r, http.StatusCreated, u, token)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	u, token, err := s.auth.Login(r.Context(), p.Get("username"), p.Get("password"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeToken(w, r, http.StatusOK, u, token)
}

// writeToken answers with the token and also sets it as an HttpOnly cookie
// for browser clients.
func (s *Server) writeToken(w http.ResponseWriter, r *http.Request, status int, u core.User, token string) {
	expires := s.now().Add(s.auth.TokenTTL())
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		Expires:  expires,
		SameSite: http.SameSiteStrictMode,
	})
	NewJSONResponse().Status(status).Data(tokenView{
		Token:     token,
		ExpiresAt: expires.UTC(),
		User:      newUserView(u),
	}).Write(w)
}

// handleLogout clears the cookie. Tokens are stateless and stay valid for
// header clients until they expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w, r)
	NewJSONResponse().Data(map[string]string{"message": "logged out"}).Write(w)
}

func clearTokenCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Profile(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newUserView(u)).Write(w)
}

// handleUpdateProfile keeps fields the body does not mention.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	current, err := s.auth.Profile(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	pick := func(key, old string) string {
		if p.Has(key) {
			return p.Get(key)
		}
		return old
	}
	u, err := s.auth.UpdateProfile(r.Context(), userID(r), services.ProfileInput{
		Username:    pick("username", current.Username),
		Email:       pick("email", current.Email),
		PhoneNumber: pick("phone_number", current.PhoneNumber),
		Address:     pick("address", current.Address),
		AvatarURL:   pick("avatar_url", current.AvatarURL),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newUserView(u)).Write(w)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	err := s.auth.ChangePassword(r.Context(), userID(r), p.Get("old_password"), p.Get("new_password1"), p.Get("new_password2"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(map[string]string{"message": "password changed"}).Write(w)
}

// handleDeleteAccount removes the account and everything it owns. The
// password must be repeated.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	if err := s.auth.DeleteAccount(r.Context(), userID(r), p.Get("password")); err != nil {
		writeError(w, r, err)
		return
	}
	clearTokenCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}
