package daemon

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/codeburst/internal/auth"
	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/codeburst/internal/theme"
	"github.com/felixgeelhaar/codeburst/internal/view"
)

type pageFunc func(w http.ResponseWriter, r *http.Request, page view.Page)

// page runs the session gate before rendering. Requests the gate moves
// elsewhere are redirected; the rest are rendered with the base page data.
func (s *Server) page(name string, render pageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFrom(r.Context())
		redirect := r.URL.Query().Get(auth.RedirectParam)

		target := auth.NextTarget(id.State, r.URL.RequestURI(), redirect)
		if !target.Stay {
			http.Redirect(w, r, target.Path, http.StatusFound)
			return
		}

		theme.AcceptCH(w)
		page := view.Page{
			Dark: theme.IsDark(r),
			User: id.User,
		}
		if safe, ok := auth.SafeRedirect(redirect); ok {
			page.Redirect = safe
		}
		if name == view.PageError {
			page.Error = r.URL.Query().Get("message")
		}
		render(w, r, page)
	}
}

func (s *Server) renderStatic(name, title string) pageFunc {
	return func(w http.ResponseWriter, r *http.Request, page view.Page) {
		page.Title = title
		s.render(w, http.StatusOK, name, page)
	}
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, page view.Page) {
	d := s.loadDashboard(r.Context(), page.User)
	if d == nil {
		return
	}
	page.Title = "Dashboard"
	page.Dashboard = d
	page.Notices = d.Notices
	s.render(w, http.StatusOK, view.PageDashboard, page)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, page view.Page) {
	if err := s.pages.Write(w, status, name, page); err != nil {
		slog.Error("render page failed", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/v1/") {
		jsonError(w, http.StatusNotFound, "not found", nil)
		return
	}
	s.render(w, http.StatusNotFound, view.PageNotFound, view.Page{
		Title: "Not found",
		Dark:  theme.IsDark(r),
		User:  auth.IdentityFrom(r.Context()).User,
	})
}

// Form posts from the HTML pages

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	redirect := r.PostFormValue("redirect")

	resp, err := s.app.Auth.Login(r.Context(), auth.LoginRequest{
		Email:      email,
		Password:   r.PostFormValue("password"),
		ClientAddr: r.RemoteAddr,
	})
	if err != nil {
		status, message := http.StatusUnauthorized, "Invalid email or password."
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			slog.Error("login failed", "error", err)
			status, message = http.StatusInternalServerError, "Login is unavailable right now."
		}
		s.renderForm(w, r, status, view.PageLogin, "Log in", email, redirect, message)
		return
	}

	auth.SetCookie(w, s.cookie, resp.Token, resp.Session.ExpiresAt)
	s.redirectAfterAuth(w, r, redirect)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	redirect := r.PostFormValue("redirect")

	_, err := s.app.Auth.Register(r.Context(), auth.RegisterRequest{
		Email:     email,
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Password:  password,
	})
	if err != nil {
		status, message := http.StatusBadRequest, "Please check your email and use a password of at least 8 characters."
		switch {
		case errors.Is(err, domain.ErrEmailExists):
			status, message = http.StatusConflict, "That email is already registered."
		case !errors.Is(err, domain.ErrInvalidInput):
			slog.Error("signup failed", "error", err)
			status, message = http.StatusInternalServerError, "Sign up is unavailable right now."
		}
		s.renderForm(w, r, status, view.PageSignup, "Sign up", email, redirect, message)
		return
	}

	resp, err := s.app.Auth.Login(r.Context(), auth.LoginRequest{Email: email, Password: password, ClientAddr: r.RemoteAddr})
	if err != nil {
		slog.Error("login after signup failed", "error", err)
		http.Redirect(w, r, auth.PathLogin, http.StatusSeeOther)
		return
	}
	auth.SetCookie(w, s.cookie, resp.Token, resp.Session.ExpiresAt)
	s.redirectAfterAuth(w, r, redirect)
}

func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request) {
	s.logout(w, r)
	http.Redirect(w, r, auth.PathHome, http.StatusSeeOther)
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, name, title, email, redirect, message string) {
	page := view.Page{
		Title: title,
		Dark:  theme.IsDark(r),
		Email: email,
		Error: message,
	}
	if safe, ok := auth.SafeRedirect(redirect); ok {
		page.Redirect = safe
	}
	s.render(w, status, name, page)
}

// redirectAfterAuth resolves the post-login target through the gate
func (s *Server) redirectAfterAuth(w http.ResponseWriter, r *http.Request, redirect string) {
	target := auth.NextTarget(auth.StateAuthenticated, auth.PathLogin, redirect)
	http.Redirect(w, r, target.Path, http.StatusSeeOther)
}
