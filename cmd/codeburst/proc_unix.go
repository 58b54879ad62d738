//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProcess puts codeburstd in its own process group so it
// outlives the shell that ran "codeburst start"
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
