package runner_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/codeburst/internal/runner"
)

// skipIfNoNode skips the test if node is not on PATH
func skipIfNoNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not available, skipping local executor tests")
	}
}

// skipIfNoDocker skips the test if Docker is not available
func skipIfNoDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("Docker not available, skipping Docker executor tests")
	}
	if out, err := exec.Command("docker", "info").CombinedOutput(); err != nil {
		t.Skipf("Docker daemon not running, skipping Docker executor tests: %v, output: %s", err, string(out))
	}
}

func newLocalService(t *testing.T, timeout time.Duration) *runner.Service {
	t.Helper()
	executor, err := runner.NewLocalExecutor("", t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalExecutor() error = %v", err)
	}
	cfg := runner.DefaultConfig()
	cfg.Timeout = timeout
	return runner.NewService(cfg, executor)
}

func runSnippets(t *testing.T, svc *runner.Service) {
	t.Helper()
	expected := "Hello, World!"
	hello := &domain.TutorialStep{ID: "hello-world", ExpectedOutput: &expected}

	tests := []struct {
		name     string
		code     string
		wantText string
		wantOK   bool
	}{
		{"hello world", "console.log('Hello, World!');", "Hello, World!", true},
		{"thrown error", "throw new Error('boom')", "Error: boom", false},
		{"arguments joined by space", "console.log('a', 1, true)", "a 1 true", true},
		{"several lines", "console.log('one');\nconsole.log('two');", "one\ntwo", true},
		{"no output", "const x = 1;", "no output", true},
		{"syntax error", "console.log(", "Error: ", false},
		{"no host globals", "console.log(typeof process, typeof require)", "undefined undefined", true},
		{"console function constructor stays in context", "console.log(console.log.constructor('return typeof process')())", "undefined", true},
		{"console function constructor cannot reach process", "console.log.constructor('return process')()", "Error: process is not defined", false},
		{"global constructor stays in context", "console.log(this.constructor.constructor('return typeof require')())", "undefined", true},
		{"console.error is silent", "console.error('x'); console.log('y')", "y", true},
		{"console.info and console.warn are silent", "console.info('x'); console.warn('z'); console.log('y')", "y", true},
		{"logged empty line", "console.log('')", "", true},
		{"logged trailing break kept", "console.log('Hello, World!\\n')", "Hello, World!\n", true},
		{"thrown plain object", "throw { message: 'custom' }", "Error: custom", false},
		{"thrown string", "throw 'plain'", "Error: plain", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := svc.Execute(context.Background(), tt.code, hello)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if tt.wantOK && r.OutputText != tt.wantText {
				t.Errorf("OutputText = %q; want %q", r.OutputText, tt.wantText)
			}
			if !tt.wantOK && !strings.HasPrefix(r.OutputText, tt.wantText) {
				t.Errorf("OutputText = %q; want prefix %q", r.OutputText, tt.wantText)
			}
			if r.Succeeded != tt.wantOK {
				t.Errorf("Succeeded = %v; want %v", r.Succeeded, tt.wantOK)
			}
			wantMatch := r.OutputText == expected
			if r.MatchedExpected == nil || *r.MatchedExpected != wantMatch {
				t.Errorf("MatchedExpected = %v; want %v", r.MatchedExpected, wantMatch)
			}
		})
	}
}

func TestLocalExecutor_Snippets(t *testing.T) {
	skipIfNoNode(t)
	runSnippets(t, newLocalService(t, 5*time.Second))
}

func TestLocalExecutor_NoStateLeaksBetweenRuns(t *testing.T) {
	skipIfNoNode(t)
	svc := newLocalService(t, 5*time.Second)
	ctx := context.Background()

	if _, err := svc.Execute(ctx, "globalThis.leaked = 42; console.log = null;", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	r, err := svc.Execute(ctx, "console.log(typeof leaked)", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if r.OutputText != "undefined" {
		t.Errorf("OutputText = %q; want %q", r.OutputText, "undefined")
	}
}

func TestLocalExecutor_InfiniteLoopTimesOut(t *testing.T) {
	skipIfNoNode(t)
	svc := newLocalService(t, 200*time.Millisecond)

	r, err := svc.Execute(context.Background(), "while (true) {}", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if r.Succeeded {
		t.Error("Succeeded = true; want false")
	}
	if !strings.HasPrefix(r.OutputText, "Error: execution timed out after") {
		t.Errorf("OutputText = %q", r.OutputText)
	}
}

func TestDockerExecutor_Snippets(t *testing.T) {
	skipIfNoDocker(t)

	executor, err := runner.NewDockerExecutor(runner.DefaultDockerConfig())
	if err != nil {
		t.Fatalf("NewDockerExecutor() error = %v", err)
	}
	cfg := runner.DefaultConfig()
	cfg.Timeout = 30 * time.Second // first run may pull the image
	svc := runner.NewService(cfg, executor)
	defer svc.Close()

	runSnippets(t, svc)
}

func TestNewExecutor_UnknownKind(t *testing.T) {
	if _, err := runner.NewExecutor("wasm", runner.DefaultDockerConfig(), ""); err == nil {
		t.Error("NewExecutor(wasm) error = nil; want error")
	}
}
