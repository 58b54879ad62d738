package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/auth"
	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/codeburst/internal/runner"
	"github.com/felixgeelhaar/codeburst/internal/theme"
	"github.com/felixgeelhaar/codeburst/internal/view"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storage := map[string]any{"driver": s.app.Storage.Driver, "healthy": true}
	if err := s.app.Storage.Ping(ctx); err != nil {
		storage["healthy"] = false
		storage["error"] = err.Error()
	}

	resp := map[string]any{
		"status":          "running",
		"version":         s.version,
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
		"storage":         storage,
		"content_source":  s.cfg.Content.Source,
		"progress_writer": s.cfg.Progress.Writer,
		"progress":        s.app.Writer.Stats(),
	}
	if s.app.Runner != nil {
		resp["runner"] = s.app.Runner.Stats()
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Steps

func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	steps, notices := s.app.Content.LoadStepsWithFallback(r.Context())
	jsonResponse(w, http.StatusOK, map[string]any{
		"steps":   steps,
		"count":   len(steps),
		"notices": notices,
	})
}

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	step, err := s.app.Content.GetStep(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrStepNotFound) {
			jsonError(w, http.StatusNotFound, "step not found", err)
			return
		}
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, step)
}

func (s *Server) handleReloadSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := s.app.Content.Reload(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"count": len(steps)})
}

// Runs

type runRequest struct {
	Code   string `json:"code"`
	StepID string `json:"step_id,omitempty"`
}

type runResponse struct {
	domain.ExecutionResult
	StepID    string   `json:"step_id,omitempty"`
	Completed bool     `json:"completed"`
	Notices   []string `json:"notices,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.app.Runner == nil {
		jsonError(w, http.StatusServiceUnavailable, "runner unavailable", nil)
		return
	}

	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var step *domain.TutorialStep
	if req.StepID != "" {
		var err error
		if step, err = s.app.Content.GetStep(r.Context(), req.StepID); err != nil {
			jsonError(w, http.StatusNotFound, "step not found", err)
			return
		}
	}

	result, err := s.app.Runner.Execute(r.Context(), req.Code, step)
	switch {
	case err == nil:
	case errors.Is(err, runner.ErrSourceTooLarge):
		jsonError(w, http.StatusBadRequest, "code too large", err)
		return
	case errors.Is(err, runner.ErrRunnerBusy):
		jsonError(w, http.StatusServiceUnavailable, "runner busy, try again", err)
		return
	case r.Context().Err() != nil:
		return
	default:
		jsonError(w, http.StatusServiceUnavailable, "runner unavailable", err)
		return
	}

	resp := runResponse{ExecutionResult: result, StepID: req.StepID}
	if step != nil && result.MatchedExpected != nil && *result.MatchedExpected {
		if user, ok := auth.CurrentUser(r.Context()); ok {
			resp.Completed, resp.Notices = s.completeStep(r.Context(), user, step.ID)
		}
	}
	jsonResponse(w, http.StatusOK, resp)
}

// completeStep marks stepID complete for user after a matching run
func (s *Server) completeStep(ctx context.Context, user *domain.User, stepID string) (bool, []string) {
	steps, notices := s.app.Content.LoadStepsWithFallback(ctx)
	rec, err := s.app.Progress.Resume(ctx, user.UserID, steps)
	if rec == nil {
		return false, notices
	}
	if err != nil {
		notices = append(notices, domain.Notice(err))
	}
	if err := s.app.Progress.MarkComplete(rec.RecordID, stepID); err != nil {
		slog.Warn("mark complete failed", "user_id", user.UserID, "step_id", stepID, "error", err)
		return false, notices
	}
	return true, notices
}

// Progress

// loadDashboard resolves the steps and the progress record of user. A nil
// dashboard means the request was canceled.
func (s *Server) loadDashboard(ctx context.Context, user *domain.User) *view.Dashboard {
	steps, notices := s.app.Content.LoadStepsWithFallback(ctx)
	rec, err := s.app.Progress.Resume(ctx, user.UserID, steps)
	if rec == nil {
		return nil
	}
	if err != nil {
		notices = append(notices, domain.Notice(err))
	}
	d := view.BuildDashboard(user, steps, rec, notices)
	return &d
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())
	d := s.loadDashboard(r.Context(), user)
	if d == nil {
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

type setStepRequest struct {
	Index *int `json:"index"`
}

func (s *Server) handleSetStep(w http.ResponseWriter, r *http.Request) {
	var req setStepRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Index == nil {
		jsonError(w, http.StatusBadRequest, "index is required", err)
		return
	}

	user, _ := auth.CurrentUser(r.Context())
	d := s.loadDashboard(r.Context(), user)
	if d == nil {
		return
	}
	if err := s.app.Progress.Advance(d.RecordID, *req.Index); err != nil {
		writeServiceError(w, err)
		return
	}
	s.respondProgress(w, r, user, d.Notices)
}

type completeRequest struct {
	StepID string `json:"step_id"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.StepID == "" {
		jsonError(w, http.StatusBadRequest, "step_id is required", err)
		return
	}

	user, _ := auth.CurrentUser(r.Context())
	d := s.loadDashboard(r.Context(), user)
	if d == nil {
		return
	}
	if err := s.app.Progress.MarkComplete(d.RecordID, req.StepID); err != nil {
		writeServiceError(w, err)
		return
	}
	s.respondProgress(w, r, user, d.Notices)
}

// respondProgress writes the dashboard after a change, keeping the notices
// of the load that preceded it.
func (s *Server) respondProgress(w http.ResponseWriter, r *http.Request, user *domain.User, notices []string) {
	d := s.loadDashboard(r.Context(), user)
	if d == nil {
		return
	}
	if len(d.Notices) == 0 {
		d.Notices = notices
	}
	jsonResponse(w, http.StatusOK, d)
}

// Preferences

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme.AcceptCH(w)
	dark := theme.IsDark(r)
	jsonResponse(w, http.StatusOK, map[string]any{
		theme.Key: dark,
		"theme":   theme.ModeOf(dark),
	})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	dark := theme.Toggle(w, r, s.cookie.Secure)
	jsonResponse(w, http.StatusOK, map[string]any{
		theme.Key: dark,
		"theme":   theme.ModeOf(dark),
	})
}
