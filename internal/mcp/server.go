package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/codeburst/internal/view"
)

// Server exposes the tutorial to editor agents over MCP
type Server struct {
	mcpServer *server.Server
	app       *app.Context
	learner   string
}

// Config contains configuration for the MCP server
type Config struct {
	App *app.Context
	// Learner is the email of the account progress tools act for
	Learner string
	Version string
}

// NewServer creates a new MCP server for CodeBurst
func NewServer(cfg Config) *Server {
	s := &Server{
		app:     cfg.App,
		learner: cfg.Learner,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "codeburst",
		Version: version,
	}, server.WithInstructions(`
CodeBurst is an interactive JavaScript tutorial.
Learners work through an ordered sequence of steps, run snippets in an
isolated runtime and get a verdict against each step's expected output.

Available tools:
- codeburst_steps: List the tutorial steps
- codeburst_step: Show one step with its starter code
- codeburst_run: Run a JavaScript snippet, optionally against a step
- codeburst_progress: Show the learner's progress
- codeburst_advance: Move the learner to another step
`))

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("codeburst_steps").
		Description("List the tutorial steps in order.").
		Handler(s.handleSteps)

	s.mcpServer.Tool("codeburst_step").
		Description("Show a tutorial step: content, starter code and expected output.").
		Handler(s.handleStep)

	s.mcpServer.Tool("codeburst_run").
		Description("Run a JavaScript snippet. With a step id the output is checked against the step and a match completes it.").
		Handler(s.handleRun)

	s.mcpServer.Tool("codeburst_progress").
		Description("Show the learner's current step and completed steps.").
		Handler(s.handleProgress)

	s.mcpServer.Tool("codeburst_advance").
		Description("Move the learner to the step at a zero-based index.").
		Handler(s.handleAdvance)
}

// Input/Output types for tools

type StepsInput struct{}

type StepSummary struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

type StepsOutput struct {
	Steps   []StepSummary `json:"steps"`
	Notices []string      `json:"notices,omitempty"`
}

type StepInput struct {
	StepID string `json:"step_id" jsonschema:"description=Step ID as listed by codeburst_steps"`
}

type StepOutput struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Content        string `json:"content,omitempty"`
	StarterCode    string `json:"starter_code,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

type RunInput struct {
	Code   string `json:"code" jsonschema:"description=JavaScript source to run"`
	StepID string `json:"step_id,omitempty" jsonschema:"description=Step to check the output against"`
	Email  string `json:"email,omitempty" jsonschema:"description=Learner account to credit (defaults to the configured learner)"`
}

type RunOutput struct {
	Output    string `json:"output"`
	Succeeded bool   `json:"succeeded"`
	Verdict   string `json:"verdict"`
	Completed bool   `json:"completed"`
}

type ProgressInput struct {
	Email string `json:"email,omitempty" jsonschema:"description=Learner account (defaults to the configured learner)"`
}

type ProgressOutput struct {
	Current      string   `json:"current"`
	CurrentIndex int      `json:"current_index"`
	Completed    []string `json:"completed"`
	Summary      string   `json:"summary"`
	Notices      []string `json:"notices,omitempty"`
}

type AdvanceInput struct {
	Index int    `json:"index" jsonschema:"description=Zero-based step index"`
	Email string `json:"email,omitempty" jsonschema:"description=Learner account (defaults to the configured learner)"`
}

// Tool handlers

func (s *Server) handleSteps(ctx context.Context, _ StepsInput) (StepsOutput, error) {
	steps, notices := s.app.Content.LoadStepsWithFallback(ctx)
	out := StepsOutput{Steps: make([]StepSummary, len(steps)), Notices: notices}
	for i, step := range steps {
		out.Steps[i] = StepSummary{Index: i, ID: step.ID, Title: step.Title}
	}
	return out, nil
}

func (s *Server) handleStep(ctx context.Context, input StepInput) (StepOutput, error) {
	step, err := s.app.Content.GetStep(ctx, input.StepID)
	if err != nil {
		return StepOutput{}, fmt.Errorf("step %q: %w", input.StepID, err)
	}
	out := StepOutput{
		ID:          step.ID,
		Title:       step.Title,
		Description: step.Description,
		Content:     step.Content,
		StarterCode: step.CodeExample,
	}
	if step.ExpectedOutput != nil {
		out.ExpectedOutput = *step.ExpectedOutput
	}
	return out, nil
}

func (s *Server) handleRun(ctx context.Context, input RunInput) (RunOutput, error) {
	if s.app.Runner == nil {
		return RunOutput{}, errors.New("runner unavailable")
	}

	var step *domain.TutorialStep
	if input.StepID != "" {
		var err error
		if step, err = s.app.Content.GetStep(ctx, input.StepID); err != nil {
			return RunOutput{}, fmt.Errorf("step %q: %w", input.StepID, err)
		}
	}

	result, err := s.app.Runner.Execute(ctx, input.Code, step)
	if err != nil {
		return RunOutput{}, fmt.Errorf("run failed: %w", err)
	}

	out := RunOutput{
		Output:    result.OutputText,
		Succeeded: result.Succeeded,
		Verdict:   verdict(result.MatchedExpected),
	}
	if step == nil || result.MatchedExpected == nil || !*result.MatchedExpected {
		return out, nil
	}

	// Crediting is best effort: without a learner the run still reports
	if user, err := s.learnerFor(ctx, input.Email); err == nil {
		steps, _ := s.app.Content.LoadStepsWithFallback(ctx)
		if rec, _ := s.app.Progress.Resume(ctx, user.UserID, steps); rec != nil {
			out.Completed = s.app.Progress.MarkComplete(rec.RecordID, step.ID) == nil
		}
	}
	return out, nil
}

func (s *Server) handleProgress(ctx context.Context, input ProgressInput) (ProgressOutput, error) {
	d, err := s.dashboard(ctx, input.Email)
	if err != nil {
		return ProgressOutput{}, err
	}
	return progressOutput(d), nil
}

func (s *Server) handleAdvance(ctx context.Context, input AdvanceInput) (ProgressOutput, error) {
	d, err := s.dashboard(ctx, input.Email)
	if err != nil {
		return ProgressOutput{}, err
	}
	if err := s.app.Progress.Advance(d.RecordID, input.Index); err != nil {
		return ProgressOutput{}, fmt.Errorf("advance to %d: %w", input.Index, err)
	}
	d, err = s.dashboard(ctx, input.Email)
	if err != nil {
		return ProgressOutput{}, err
	}
	return progressOutput(d), nil
}

// dashboard resolves the learner and their progress view
func (s *Server) dashboard(ctx context.Context, email string) (*view.Dashboard, error) {
	user, err := s.learnerFor(ctx, email)
	if err != nil {
		return nil, err
	}
	steps, notices := s.app.Content.LoadStepsWithFallback(ctx)
	rec, err := s.app.Progress.Resume(ctx, user.UserID, steps)
	if rec == nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if err != nil {
		notices = append(notices, domain.Notice(err))
	}
	d := view.BuildDashboard(user, steps, rec, notices)
	return &d, nil
}

func (s *Server) learnerFor(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		email = s.learner
	}
	if email == "" {
		return nil, errors.New("no learner configured: pass email or start with --user")
	}
	user, err := s.app.Auth.UserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("learner %q: %w", email, err)
	}
	return user, nil
}

func progressOutput(d *view.Dashboard) ProgressOutput {
	out := ProgressOutput{
		CurrentIndex: d.CurrentIndex,
		Completed:    []string{},
		Notices:      d.Notices,
	}
	for _, entry := range d.Steps {
		if entry.Index == d.CurrentIndex {
			out.Current = entry.ID
		}
		if entry.Marker == view.MarkerCompleted {
			out.Completed = append(out.Completed, entry.ID)
		}
	}

	var summary []string
	summary = append(summary, fmt.Sprintf("%d/%d steps completed (%s)", d.CompletedCount, d.Total, d.PercentLabel()))
	if d.Finished {
		summary = append(summary, "tutorial finished")
	} else if d.Current != nil {
		summary = append(summary, fmt.Sprintf("current: %d. %s", d.CurrentIndex+1, d.Current.Title))
	}
	out.Summary = strings.Join(summary, " | ")
	return out
}

func verdict(matched *bool) string {
	switch {
	case matched == nil:
		return "none"
	case *matched:
		return "match"
	default:
		return "mismatch"
	}
}

// ServeStdio starts the MCP server on stdio (for editor integration)
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
