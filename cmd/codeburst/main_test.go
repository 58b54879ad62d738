package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/felixgeelhaar/codeburst/internal/config"
	"github.com/felixgeelhaar/codeburst/internal/view"
)

// execute runs the root command against a fresh CODEBURST_HOME
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CODEBURST_HOME", t.TempDir())
	t.Setenv("CODEBURST_USER", "")
	t.Setenv("COLORFGBG", "15;0")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if out != "codeburst dev\n" {
		t.Errorf("version = %q", out)
	}
}

func TestThemeCommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, "theme", "show")
	if err != nil {
		t.Fatalf("theme show error = %v", err)
	}
	if out != "dark (terminal)\n" {
		t.Errorf("theme show = %q; want dark from COLORFGBG", out)
	}

	out, err = execute(t, "theme", "toggle")
	if err != nil {
		t.Fatalf("theme toggle error = %v", err)
	}
	if out != "Theme set to light\n" {
		t.Errorf("theme toggle = %q", out)
	}

	out, _ = execute(t, "theme", "show")
	if out != "light (saved)\n" {
		t.Errorf("theme show after toggle = %q", out)
	}
}

func TestStepsCommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, "steps", "list")
	if err != nil {
		t.Fatalf("steps list error = %v", err)
	}
	for _, want := range []string{"intro", "hello-world", "Variables"} {
		if !strings.Contains(out, want) {
			t.Errorf("steps list missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "steps", "show", "hello-world")
	if err != nil {
		t.Fatalf("steps show error = %v", err)
	}
	if !strings.Contains(out, "Expected output:\nHello, World!") {
		t.Errorf("steps show = %q", out)
	}

	if _, err := execute(t, "steps", "show", "missing"); err == nil {
		t.Error("steps show missing: expected error")
	}
}

func TestProgressRequiresUser(t *testing.T) {
	isolate(t)

	_, err := execute(t, "progress", "--user", "")
	if err == nil || !strings.Contains(err.Error(), "learner required") {
		t.Errorf("progress error = %v; want learner required", err)
	}
}

func TestReadSource(t *testing.T) {
	got, err := readSource(strings.NewReader("console.log(1)"), "-")
	if err != nil || got != "console.log(1)" {
		t.Errorf("readSource(-) = %q, %v", got, err)
	}

	if _, err := readSource(strings.NewReader(""), "/does/not/exist.js"); err == nil {
		t.Error("readSource(missing) expected error")
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		value float64
		dark  bool
		want  string
	}{
		{0, true, "[░░░░]"},
		{0.5, true, "[██░░]"},
		{1, true, "[████]"},
		{1.5, true, "[████]"},
		{-1, true, "[░░░░]"},
		{0.5, false, "[▓▓░░]"},
	}
	for _, tt := range tests {
		if got := renderProgressBar(tt.value, 4, tt.dark); got != tt.want {
			t.Errorf("renderProgressBar(%v, %v) = %q; want %q", tt.value, tt.dark, got, tt.want)
		}
	}
}

func TestMarkerGlyph(t *testing.T) {
	tests := map[view.Marker]string{
		view.MarkerCurrent:   "▶",
		view.MarkerCompleted: "✓",
		view.MarkerNone:      " ",
	}
	for m, want := range tests {
		if got := markerGlyph(m); got != want {
			t.Errorf("markerGlyph(%q) = %q; want %q", m, got, want)
		}
	}
}

func TestDaemonAddr(t *testing.T) {
	tests := []struct {
		bind string
		want string
	}{
		{"127.0.0.1", "http://127.0.0.1:7433"},
		{"0.0.0.0", "http://127.0.0.1:7433"},
		{"", "http://127.0.0.1:7433"},
		{"::1", "http://[::1]:7433"},
	}
	for _, tt := range tests {
		cfg := config.DefaultLocalConfig()
		cfg.Daemon.Bind = tt.bind
		if got := daemonAddr(cfg); got != tt.want {
			t.Errorf("daemonAddr(%q) = %q; want %q", tt.bind, got, tt.want)
		}
	}
}
