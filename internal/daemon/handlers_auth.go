package daemon

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/codeburst/internal/auth"
	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// requireUser rejects anonymous API requests with 401
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAuthenticated(r.Context()) {
			jsonError(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		next(w, r)
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	user, err := s.app.Auth.Register(r.Context(), auth.RegisterRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	slog.Info("user registered", "user_id", user.UserID)
	jsonResponse(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := s.app.Auth.Login(r.Context(), auth.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		ClientAddr: r.RemoteAddr,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	auth.SetCookie(w, s.cookie, resp.Token, resp.Session.ExpiresAt)
	jsonResponse(w, http.StatusOK, map[string]any{
		"user":       resp.User,
		"token":      resp.Token,
		"expires_at": resp.Session.ExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logout(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())
	jsonResponse(w, http.StatusOK, map[string]any{
		"user":       id.User,
		"state":      id.State.String(),
		"expires_at": id.Session.ExpiresAt,
	})
}

// logout ends the session of the request, if any, and drops the user's
// in-memory progress. It is safe to call for anonymous requests.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())
	if id.Token != "" {
		if err := s.app.Auth.Logout(r.Context(), id.Token); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			slog.Warn("logout failed", "error", err)
		}
	}
	if id.User != nil {
		s.app.Progress.Forget(id.User.UserID)
	}
	auth.ClearCookie(w, s.cookie)
}
