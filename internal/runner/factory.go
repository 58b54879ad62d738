package runner

import (
	"fmt"
	"log/slog"
)

// Executor kinds accepted by NewExecutor
const (
	KindAuto   = "auto"
	KindDocker = "docker"
	KindLocal  = "local"
)

// NewExecutor builds the executor named by kind. "auto" prefers Docker and
// falls back to a local node process when the daemon is unreachable.
func NewExecutor(kind string, docker DockerConfig, nodePath string) (Executor, error) {
	switch kind {
	case KindDocker:
		return NewDockerExecutor(docker)
	case KindLocal:
		return NewLocalExecutor(nodePath, "")
	case KindAuto, "":
		exec, err := NewDockerExecutor(docker)
		if err == nil {
			return exec, nil
		}
		slog.Warn("Docker executor not available, using local executor", "error", err)
		return NewLocalExecutor(nodePath, "")
	default:
		return nil, fmt.Errorf("unknown executor %q", kind)
	}
}
