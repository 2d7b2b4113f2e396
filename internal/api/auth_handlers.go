package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/andrevros/imovelsync/internal/auth"
)

const sessionCookieName = "session_token"

// handleLogin authenticates a reviewer and opens a session. The cookie
// lifetime comes from auth.session_days.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := s.store.GetUserByUsername(creds.Username)
	if err != nil || !auth.CheckPasswordHash(creds.Password, user.PasswordHash) {
		// One message for both cases so usernames can't be enumerated.
		RespondWithError(w, http.StatusUnauthorized, "Invalid reviewer credentials")
		return
	}

	token, err := s.store.CreateSession(user.ID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	http.SetCookie(w, s.sessionCookie(r, token, s.sessionTTL()))
	w.WriteHeader(http.StatusOK)
}

// handleLogout drops the server-side session and expires the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.store.DeleteSession(cookie.Value)
	}
	http.SetCookie(w, s.sessionCookie(r, "", 0))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		RespondWithError(w, http.StatusUnauthorized, "No active reviewer session")
		return
	}
	RespondWithJSON(w, http.StatusOK, user)
}

func (s *Server) sessionTTL() time.Duration {
	days := s.app.Config().Auth.SessionDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// sessionCookie builds the session cookie; a zero ttl expires it.
func (s *Server) sessionCookie(r *http.Request, token string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.Expires = time.Now().Add(ttl)
	} else {
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
	}
	return c
}
