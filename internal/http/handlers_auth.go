package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"billed/internal/auth"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/routes"
)

// sessionCookie carries the token for page requests.
const sessionCookie = "jwt"

type loginRequest struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Type     core.UserType `json:"type"`
}

type loginResponse struct {
	JWT string `json:"jwt"`
}

// handleLogin accepts JSON credentials from API clients and form posts from
// the login page. Both set the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fromPage := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

	var req loginRequest
	if fromPage {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		req = loginRequest{
			Email:    sanitizeInput(r.PostForm.Get("email")),
			Password: r.PostForm.Get("password"),
			Type:     core.UserType(sanitizeInput(r.PostForm.Get("type"))),
		}
	} else if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	sess, err := s.deps.Users.Authenticate(ctx, strings.TrimSpace(req.Email), req.Password, req.Type)
	if err == nil {
		var token string
		token, err = s.deps.Tokens.Generate(sess)
		if err == nil {
			s.setSessionCookie(w, r, token)
			log.FromContext(ctx).InfoContext(ctx, "User logged in", log.FieldEmail, sess.Email, "type", sess.Type)
			if fromPage {
				http.Redirect(w, r, routes.Bills, http.StatusSeeOther)
				return
			}
			writeJSON(w, http.StatusOK, loginResponse{JWT: token})
			return
		}
	}

	if fromPage && errors.Is(err, auth.ErrInvalidCredentials) {
		s.render(w, r, "login.html", http.StatusUnauthorized, pageData{
			Title: "Connexion",
			Error:      "Email ou mot de passe incorrect",
			LoginEmail: req.Email,
		})
		return
	}
	writeError(w, r, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, routes.Login, http.StatusSeeOther)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	ttl := 24 * time.Hour
	if s.deps.Config != nil {
		ttl = s.deps.Config.JWTTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireToken authenticates API requests with a bearer token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: auth.ErrMissingToken.Error()})
			return
		}
		sess, err := s.deps.Tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: auth.ErrInvalidToken.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

// requirePageSession reads the session from the cookie and sends visitors
// without one back to the login page.
func (s *Server) requirePageSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.cookieSession(r)
		if !ok {
			http.Redirect(w, r, routes.Login, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

func (s *Server) cookieSession(r *http.Request) (core.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return core.Session{}, false
	}
	sess, err := s.deps.Tokens.Validate(c.Value)
	if err != nil {
		return core.Session{}, false
	}
	return sess, true
}

// viewer returns the session set by the auth middleware.
func viewer(r *http.Request) core.Session {
	sess, _ := auth.SessionFrom(r.Context())
	return sess
}
