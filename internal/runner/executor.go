package runner

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

//go:embed harness.js
var harnessJS string

const (
	harnessFile = "harness.js"
	snippetFile = "snippet.js"
)

// Executor runs a snippet through the harness in an isolated process.
type Executor interface {
	// Name identifies the executor in status output and logs
	Name() string

	// Run executes source with the given in-harness timeout
	Run(ctx context.Context, source string, timeout time.Duration) (*HarnessOutput, error)

	// Close releases any resources held by the executor
	Close() error
}

// ErrNodeNotFound is returned when the local executor cannot find node.
var ErrNodeNotFound = errors.New("node executable not found")

// LocalExecutor runs snippets in a local node subprocess.
type LocalExecutor struct {
	nodePath string
	workDir  string
}

// NewLocalExecutor creates a local executor. An empty nodePath resolves
// "node" from PATH.
func NewLocalExecutor(nodePath, workDir string) (*LocalExecutor, error) {
	if nodePath == "" {
		nodePath = "node"
	}
	resolved, err := exec.LookPath(nodePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}
	return &LocalExecutor{nodePath: resolved, workDir: workDir}, nil
}

func (e *LocalExecutor) Name() string { return "local" }

func (e *LocalExecutor) Run(ctx context.Context, source string, timeout time.Duration) (*HarnessOutput, error) {
	tmpDir, err := os.MkdirTemp(e.workDir, "codeburst-run-*")
	if err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)
	// the permission model matches resolved paths
	if resolved, err := filepath.EvalSymlinks(tmpDir); err == nil {
		tmpDir = resolved
	}

	files := map[string]string{
		harnessFile: harnessJS,
		snippetFile: source,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	cmd := exec.CommandContext(ctx, e.nodePath, nodeArgs(tmpDir, filepath.Join(tmpDir, harnessFile), timeout)...)
	cmd.Dir = tmpDir
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out, err := ParseHarnessOutput(stdout.String())
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("node exited: %w (stderr: %s)", runErr, truncate(stderr.String(), 512))
		}
		return nil, err
	}
	return out, nil
}

func (e *LocalExecutor) Close() error { return nil }

// nodeArgs builds the node command line for one run. The permission model
// limits the process to reading its run directory, so file writes, child
// processes and workers are refused even outside the vm context.
func nodeArgs(dir, harnessPath string, timeout time.Duration) []string {
	return []string{
		"--experimental-permission",
		"--allow-fs-read=" + dir,
		harnessPath,
		dir,
		timeoutMillis(timeout),
	}
}

func timeoutMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Executor = (*LocalExecutor)(nil)
