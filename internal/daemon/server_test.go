package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/config"
	"github.com/felixgeelhaar/codeburst/internal/runner"
	"github.com/felixgeelhaar/codeburst/internal/view"
)

// scriptedExecutor answers every run with the same harness output
type scriptedExecutor struct {
	out *runner.HarnessOutput
}

func (e scriptedExecutor) Name() string { return "scripted" }

func (e scriptedExecutor) Run(ctx context.Context, source string, timeout time.Duration) (*runner.HarnessOutput, error) {
	return e.out, nil
}

func (e scriptedExecutor) Close() error { return nil }

// setupTestServer creates a server over a fresh SQLite database
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	home := t.TempDir()
	t.Setenv("CODEBURST_HOME", home)

	cfg := config.DefaultLocalConfig()
	cfg.Daemon.Port = 0
	cfg.Daemon.RunRatePerSecond = 0
	cfg.Storage.SQLitePath = filepath.Join(home, "codeburst.db")

	a, err := app.New(context.Background(), cfg,
		app.WithExecutor(scriptedExecutor{out: &runner.HarnessOutput{Output: "Hello, World!\n"}}),
		app.WithEnv(func(string) string { return "" }),
	)
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	server, err := NewServer(ServerConfig{App: a, Version: "test"})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return server
}

type request struct {
	method string
	path   string
	body   string
	form   url.Values
	cookie *http.Cookie
}

func (s *Server) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
	case req.body != "":
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else if req.body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "codeburst_session" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", w.Code)
	return nil
}

// signIn registers and logs in a learner and returns the session cookie
func signIn(t *testing.T, s *Server) *http.Cookie {
	t.Helper()

	w := s.do(t, request{method: http.MethodPost, path: "/v1/auth/register",
		body: `{"email":"ada@example.com","first_name":"Ada","password":"analytical"}`})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d; body %s", w.Code, w.Body.String())
	}

	w = s.do(t, request{method: http.MethodPost, path: "/v1/auth/login",
		body: `{"email":"ada@example.com","password":"analytical"}`})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d; body %s", w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func TestHealthEndpoint(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/v1/health"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("status = %v; want healthy", resp["status"])
	}
	if w.Header().Get(CorrelationIDHeader) == "" {
		t.Error("response should carry a correlation id")
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/v1/status"})
	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Storage struct {
			Driver  string `json:"driver"`
			Healthy bool   `json:"healthy"`
		} `json:"storage"`
		Runner runner.Stats `json:"runner"`
	}
	decode(t, w, &resp)

	if resp.Status != "running" || resp.Version != "test" {
		t.Errorf("status = %+v", resp)
	}
	if resp.Storage.Driver != "sqlite" || !resp.Storage.Healthy {
		t.Errorf("storage = %+v", resp.Storage)
	}
	if resp.Runner.Executor != "scripted" {
		t.Errorf("runner = %+v", resp.Runner)
	}
}

func TestStepsEndpoints(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/v1/steps"})
	var list struct {
		Count int `json:"count"`
		Steps []struct {
			ID string `json:"id"`
		} `json:"steps"`
	}
	decode(t, w, &list)
	if list.Count == 0 || list.Steps[0].ID != "intro" {
		t.Errorf("steps = %+v; want the built-in sequence", list)
	}

	w = s.do(t, request{method: http.MethodGet, path: "/v1/steps/hello-world"})
	if w.Code != http.StatusOK {
		t.Errorf("GET step status = %d; want 200", w.Code)
	}

	w = s.do(t, request{method: http.MethodGet, path: "/v1/steps/missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("GET missing step status = %d; want 404", w.Code)
	}
}

func TestRunEndpoint(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMatch  *bool
	}{
		{"no step", `{"code":"console.log('Hello, World!')"}`, http.StatusOK, nil},
		{"matching step", `{"code":"console.log('Hello, World!')","step_id":"hello-world"}`, http.StatusOK, ptr(true)},
		{"mismatching step", `{"code":"console.log(5)","step_id":"variables"}`, http.StatusOK, ptr(false)},
		{"unknown step", `{"code":"1","step_id":"nope"}`, http.StatusNotFound, nil},
		{"bad body", `{"code":`, http.StatusBadRequest, nil},
		{"unknown field", `{"source":"x"}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, request{method: http.MethodPost, path: "/v1/run", body: tt.body})
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d; want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp runResponse
			decode(t, w, &resp)
			if resp.OutputText != "Hello, World!" || !resp.Succeeded {
				t.Errorf("result = %+v", resp)
			}
			if (resp.MatchedExpected == nil) != (tt.wantMatch == nil) ||
				(resp.MatchedExpected != nil && *resp.MatchedExpected != *tt.wantMatch) {
				t.Errorf("MatchedExpected = %v; want %v", resp.MatchedExpected, tt.wantMatch)
			}
			if resp.Completed {
				t.Error("anonymous runs never complete a step")
			}
		})
	}
}

func TestAuthFlow(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/v1/auth/me"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous me status = %d; want 401", w.Code)
	}

	cookie := signIn(t, s)

	w = s.do(t, request{method: http.MethodGet, path: "/v1/auth/me", cookie: cookie})
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d; want 200", w.Code)
	}
	var me struct {
		User struct {
			Email     string `json:"email"`
			FirstName string `json:"firstName"`
		} `json:"user"`
		State string `json:"state"`
	}
	decode(t, w, &me)
	if me.User.Email != "ada@example.com" || me.State != "authenticated" {
		t.Errorf("me = %+v", me)
	}

	w = s.do(t, request{method: http.MethodPost, path: "/v1/auth/register",
		body: `{"email":"ADA@example.com","password":"something-else"}`})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d; want 409", w.Code)
	}

	w = s.do(t, request{method: http.MethodPost, path: "/v1/auth/login",
		body: `{"email":"ada@example.com","password":"wrong-password"}`})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d; want 401", w.Code)
	}

	w = s.do(t, request{method: http.MethodPost, path: "/v1/auth/logout", cookie: cookie})
	if w.Code != http.StatusNoContent {
		t.Errorf("logout status = %d; want 204", w.Code)
	}
	w = s.do(t, request{method: http.MethodGet, path: "/v1/auth/me", cookie: cookie})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d; want 401", w.Code)
	}
}

func TestProgressFlow(t *testing.T) {
	s := setupTestServer(t)
	cookie := signIn(t, s)

	w := s.do(t, request{method: http.MethodGet, path: "/v1/progress"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous progress status = %d; want 401", w.Code)
	}

	w = s.do(t, request{method: http.MethodGet, path: "/v1/progress", cookie: cookie})
	var d view.Dashboard
	decode(t, w, &d)
	if d.CurrentIndex != 0 || d.CompletedCount != 1 || d.UserName != "Ada" {
		t.Errorf("initial dashboard = %+v", d)
	}

	w = s.do(t, request{method: http.MethodPut, path: "/v1/progress/step", body: `{"index":1}`, cookie: cookie})
	if w.Code != http.StatusOK {
		t.Fatalf("set step status = %d; body %s", w.Code, w.Body.String())
	}
	decode(t, w, &d)
	if d.CurrentIndex != 1 || d.Steps[1].Marker != view.MarkerCurrent {
		t.Errorf("after advance = %+v", d)
	}

	for _, body := range []string{`{"index":99}`, `{"index":-1}`, `{}`} {
		w = s.do(t, request{method: http.MethodPut, path: "/v1/progress/step", body: body, cookie: cookie})
		if w.Code != http.StatusBadRequest {
			t.Errorf("set step %s status = %d; want 400", body, w.Code)
		}
	}

	w = s.do(t, request{method: http.MethodPost, path: "/v1/run", cookie: cookie,
		body: `{"code":"console.log('Hello, World!')","step_id":"hello-world"}`})
	var run runResponse
	decode(t, w, &run)
	if !run.Completed {
		t.Errorf("matching run should complete the step: %+v", run)
	}

	w = s.do(t, request{method: http.MethodPost, path: "/v1/progress/complete", body: `{"step_id":"variables"}`, cookie: cookie})
	decode(t, w, &d)
	if d.CompletedCount != 3 {
		t.Errorf("CompletedCount = %d; want 3", d.CompletedCount)
	}

	// unknown ids are ignored
	w = s.do(t, request{method: http.MethodPost, path: "/v1/progress/complete", body: `{"step_id":"ghost"}`, cookie: cookie})
	decode(t, w, &d)
	if d.CompletedCount != 3 {
		t.Errorf("CompletedCount after unknown id = %d; want 3", d.CompletedCount)
	}

	if err := s.app.Writer.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	user, _, err := s.app.Auth.ValidateSession(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	stored, err := s.app.Storage.Progress.FindByUser(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("FindByUser() error = %v", err)
	}
	if stored.CurrentStepIndex != 1 || len(stored.CompletedStepIDs) != 3 {
		t.Errorf("stored record = %+v", stored)
	}
}

func TestPages_Gate(t *testing.T) {
	s := setupTestServer(t)
	cookie := signIn(t, s)

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		status   int
		location string
	}{
		{"home", "/", nil, http.StatusOK, ""},
		{"anonymous dashboard", "/dashboard", nil, http.StatusFound, "/login?redirect=%2Fdashboard"},
		{"anonymous login", "/login?redirect=%2Fdashboard", nil, http.StatusOK, ""},
		{"signed-in dashboard", "/dashboard", cookie, http.StatusOK, ""},
		{"signed-in login", "/login", cookie, http.StatusFound, "/dashboard"},
		{"signed-in login with redirect", "/login?redirect=%2Fdashboard%3Fx%3D1", cookie, http.StatusFound, "/dashboard?x=1"},
		{"signed-in login with external redirect", "/login?redirect=https%3A%2F%2Fevil.example", cookie, http.StatusFound, "/dashboard"},
		{"callback", "/callback", nil, http.StatusOK, ""},
		{"unknown page", "/nope", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, request{method: http.MethodGet, path: tt.path, cookie: tt.cookie})
			if w.Code != tt.status {
				t.Fatalf("status = %d; want %d", w.Code, tt.status)
			}
			if tt.location != "" && w.Header().Get("Location") != tt.location {
				t.Errorf("Location = %q; want %q", w.Header().Get("Location"), tt.location)
			}
		})
	}
}

func TestPages_Dashboard(t *testing.T) {
	s := setupTestServer(t)
	cookie := signIn(t, s)

	w := s.do(t, request{method: http.MethodGet, path: "/dashboard", cookie: cookie})
	body := w.Body.String()
	for _, want := range []string{"Welcome, Ada", "Tutorial Progress", "Introduction to JavaScript"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestUnknownAPIPath(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/v1/nope"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}
}

func TestLoginForm(t *testing.T) {
	s := setupTestServer(t)
	signIn(t, s)

	w := s.do(t, request{method: http.MethodPost, path: "/login", form: url.Values{
		"email":    {"ada@example.com"},
		"password": {"analytical"},
		"redirect": {"/dashboard?step=2"},
	}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard?step=2" {
		t.Errorf("login form = %d %q", w.Code, w.Header().Get("Location"))
	}
	sessionCookie(t, w)

	w = s.do(t, request{method: http.MethodPost, path: "/login", form: url.Values{
		"email":    {"ada@example.com"},
		"password": {"nope"},
	}})
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Invalid email or password") {
		t.Errorf("bad login form = %d", w.Code)
	}
}

func TestSignupForm(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, request{method: http.MethodPost, path: "/signup", form: url.Values{
		"email":      {"grace@example.com"},
		"first_name": {"Grace"},
		"password":   {"cobol-rules"},
	}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("signup form = %d %q", w.Code, w.Header().Get("Location"))
	}
	sessionCookie(t, w)

	w = s.do(t, request{method: http.MethodPost, path: "/signup", form: url.Values{
		"email":    {"grace@example.com"},
		"password": {"short"},
	}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid signup status = %d; want 400", w.Code)
	}
}

func TestThemeToggle(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, request{method: http.MethodPost, path: "/v1/preferences/theme/toggle"})
	var resp map[string]any
	decode(t, w, &resp)
	if resp["darkMode"] != true || resp["theme"] != "dark" {
		t.Errorf("toggle = %v; want dark", resp)
	}

	var themeCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "darkMode" {
			themeCookie = c
		}
	}
	if themeCookie == nil {
		t.Fatal("toggle should set the darkMode cookie")
	}

	w = s.do(t, request{method: http.MethodGet, path: "/", cookie: themeCookie})
	if !strings.Contains(w.Body.String(), `class="dark"`) {
		t.Error("home page should render dark")
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{runner.ErrRunnerBusy, http.StatusServiceUnavailable},
		{runner.ErrSourceTooLarge, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
