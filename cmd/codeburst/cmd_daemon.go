package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/codeburst/internal/config"
)

const pidFile = "codeburstd.pid"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	Args:  cobra.NoArgs,
	RunE:  cmdStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	Args:  cobra.NoArgs,
	RunE:  cmdStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  cmdStatus,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon logs",
	Args:  cobra.NoArgs,
	RunE:  cmdLogs,
}

// daemonAddr returns the base URL of the configured daemon
func daemonAddr(cfg *config.LocalConfig) string {
	host := cfg.Daemon.Bind
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Daemon.Port))
}

func cmdStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := daemonAddr(cfg)
	out := cmd.OutOrStdout()

	if isRunning(addr) {
		fmt.Fprintln(out, "✓ Daemon is already running")
		return nil
	}

	dir, err := config.CodeBurstDir()
	if err != nil {
		return err
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	proc := exec.Command(daemonPath)
	proc.Dir = dir
	proc.Stdout = nil
	proc.Stderr = nil

	// Detach from parent process (platform-specific)
	configureDaemonProcess(proc)

	if err := proc.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Fprint(out, "Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			fmt.Fprintf(out, "Daemon running at %s\n", addr)
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'codeburst logs')")
}

func cmdStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := daemonAddr(cfg)
	out := cmd.OutOrStdout()

	if !isRunning(addr) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	dir, err := config.CodeBurstDir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Fprint(out, "Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

type daemonStatus struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ContentSource string `json:"content_source"`
	Storage       struct {
		Driver  string `json:"driver"`
		Healthy bool   `json:"healthy"`
		Error   string `json:"error"`
	} `json:"storage"`
	Runner struct {
		Executor string `json:"executor"`
		InFlight int64  `json:"in_flight"`
		Total    int64  `json:"total"`
	} `json:"runner"`
	Progress struct {
		Pending int   `json:"pending"`
		Dropped int64 `json:"dropped"`
	} `json:"progress"`
}

func cmdStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := daemonAddr(cfg)
	out := cmd.OutOrStdout()

	if !isRunning(addr) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	resp, err := http.Get(addr + "/v1/status")
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	var status daemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("parse status: %w", err)
	}

	storage := status.Storage.Driver
	if !status.Storage.Healthy {
		storage += " (unhealthy: " + status.Storage.Error + ")"
	}

	fmt.Fprintf(out, "Status:    %s\n", status.Status)
	fmt.Fprintf(out, "Version:   %s\n", status.Version)
	fmt.Fprintf(out, "Uptime:    %s\n", time.Duration(status.UptimeSeconds)*time.Second)
	fmt.Fprintf(out, "Storage:   %s\n", storage)
	fmt.Fprintf(out, "Content:   %s\n", status.ContentSource)
	fmt.Fprintf(out, "Runner:    %s (%d runs, %d in flight)\n", status.Runner.Executor, status.Runner.Total, status.Runner.InFlight)
	fmt.Fprintf(out, "Progress:  %d pending, %d dropped\n", status.Progress.Pending, status.Progress.Dropped)
	fmt.Fprintf(out, "Address:   %s\n", addr)

	return nil
}

func cmdLogs(cmd *cobra.Command, args []string) error {
	dir, err := config.CodeBurstDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, "logs", "codeburstd.log")
	out := cmd.OutOrStdout()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No log file found. Start the daemon first.")
		return nil
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// Seek to end and go back ~4KB for recent logs
	info, _ := file.Stat()
	offset := info.Size() - 4096
	if offset < 0 {
		offset = 0
	}
	_, _ = file.Seek(offset, 0)

	reader := bufio.NewReader(file)
	// Skip partial first line if we seeked
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning(addr string) bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(addr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the codeburstd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("codeburstd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "codeburstd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	locations := []string{
		"/usr/local/bin/codeburstd",
		"./codeburstd",
		"./cmd/codeburstd/codeburstd",
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("codeburstd binary not found (build with 'go build ./cmd/codeburstd')")
}
