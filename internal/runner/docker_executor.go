package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
)

const workspaceDir = "/workspace"

// DockerConfig holds Docker executor configuration
type DockerConfig struct {
	Image      string
	MemoryMB   int64
	CPULimit   float64
	PidsLimit  int64
	NetworkOff bool
}

// DefaultDockerConfig returns the default sandbox limits
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Image:      "node:20-alpine",
		MemoryMB:   128,
		CPULimit:   0.5,
		PidsLimit:  64,
		NetworkOff: true,
	}
}

// DockerExecutor runs snippets inside a warm, network-less container.
// Each run gets its own directory and its own node process.
type DockerExecutor struct {
	client *client.Client
	config DockerConfig

	mu          sync.Mutex
	containerID string
}

// NewDockerExecutor connects to the Docker daemon from the environment.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	defaults := DefaultDockerConfig()
	if cfg.Image == "" {
		cfg.Image = defaults.Image
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = defaults.MemoryMB
	}
	if cfg.CPULimit <= 0 {
		cfg.CPULimit = defaults.CPULimit
	}
	if cfg.PidsLimit <= 0 {
		cfg.PidsLimit = defaults.PidsLimit
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	// Verify Docker is reachable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerExecutor{client: cli, config: cfg}, nil
}

func (e *DockerExecutor) Name() string { return "docker" }

func (e *DockerExecutor) Run(ctx context.Context, source string, timeout time.Duration) (*HarnessOutput, error) {
	containerID, err := e.ensureContainer(ctx)
	if err != nil {
		return nil, err
	}

	runDir := "run-" + uuid.NewString()
	files := map[string]string{
		runDir + "/" + harnessFile: harnessJS,
		runDir + "/" + snippetFile: source,
	}
	if err := e.copyFiles(ctx, containerID, runDir, files); err != nil {
		return nil, fmt.Errorf("copy snippet: %w", err)
	}
	defer e.removeRunDir(containerID, runDir)

	dir := workspaceDir + "/" + runDir
	stdout, stderr, exitCode, err := e.exec(ctx, containerID, "node",
		append([]string{"node"}, nodeArgs(dir, dir+"/"+harnessFile, timeout)...))
	if err != nil {
		return nil, err
	}

	out, err := ParseHarnessOutput(stdout)
	if err != nil {
		if exitCode != 0 {
			return nil, fmt.Errorf("node exited with code %d (stderr: %s)", exitCode, truncate(stderr, 512))
		}
		return nil, err
	}
	return out, nil
}

// Close removes the warm container and closes the Docker client.
func (e *DockerExecutor) Close() error {
	e.mu.Lock()
	id := e.containerID
	e.containerID = ""
	e.mu.Unlock()

	if id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		timeout := 5
		_ = e.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
		_ = e.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	}
	return e.client.Close()
}

func (e *DockerExecutor) ensureContainer(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.containerID != "" {
		info, err := e.client.ContainerInspect(ctx, e.containerID)
		if err == nil && info.State != nil && info.State.Running {
			return e.containerID, nil
		}
		slog.Warn("runner container gone, recreating", "container", shortID(e.containerID))
		_ = e.client.ContainerRemove(ctx, e.containerID, container.RemoveOptions{Force: true})
		e.containerID = ""
	}

	if err := e.ensureImage(ctx, e.config.Image); err != nil {
		return "", fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           e.config.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      workspaceDir,
		NetworkDisabled: e.config.NetworkOff,
		Labels: map[string]string{
			"codeburst.runner": "true",
		},
	}

	pids := e.config.PidsLimit
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:    e.config.MemoryMB * 1024 * 1024,
			NanoCPUs:  int64(e.config.CPULimit * 1e9),
			PidsLimit: &pids,
		},
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
	}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = e.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}

	slog.Info("runner container started", "container", shortID(resp.ID), "image", e.config.Image)
	e.containerID = resp.ID
	return resp.ID, nil
}

func (e *DockerExecutor) copyFiles(ctx context.Context, containerID, dir string, files map[string]string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if err := tw.WriteHeader(&tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return fmt.Errorf("write tar content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}

	return e.client.CopyToContainer(ctx, containerID, workspaceDir, &buf, container.CopyToContainerOptions{})
}

func (e *DockerExecutor) exec(ctx context.Context, containerID, user string, cmd []string) (stdout, stderr string, exitCode int, err error) {
	execResp, err := e.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		User:         user,
		WorkingDir:   workspaceDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", "", 0, fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := e.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", "", 0, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var outBuf bytes.Buffer
	if _, err := io.Copy(&outBuf, attachResp.Reader); err != nil && ctx.Err() != nil {
		return "", "", 0, ctx.Err()
	}

	inspectResp, err := e.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return "", "", 0, fmt.Errorf("inspect exec: %w", err)
	}

	stdout, stderr = demuxOutput(outBuf.Bytes())
	return stdout, stderr, inspectResp.ExitCode, nil
}

func (e *DockerExecutor) removeRunDir(containerID, runDir string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, _, err := e.exec(ctx, containerID, "", []string{"rm", "-rf", workspaceDir + "/" + runDir}); err != nil {
		slog.Debug("remove run dir failed", "dir", runDir, "error", err)
	}
}

func (e *DockerExecutor) ensureImage(ctx context.Context, img string) error {
	if _, err := e.client.ImageInspect(ctx, img); err == nil {
		return nil
	}

	reader, err := e.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// demuxOutput separates Docker multiplexed stdout/stderr streams.
// Each frame has an 8-byte header: [type][0][0][0][size (big endian uint32)]
// with type 1 for stdout and 2 for stderr.
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder

	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]

		if size > len(data) {
			size = len(data)
		}

		chunk := string(data[:size])
		data = data[size:]

		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}

	// No headers means a raw (tty) stream
	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(data) > 0 {
		return string(data), ""
	}

	return outBuf.String(), errBuf.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

var _ Executor = (*DockerExecutor)(nil)
