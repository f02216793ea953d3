//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// detachedEnv marks the re-executed, detached copy of the agent.
const detachedEnv = "TRACE_AGENT_DETACHED"

// RunAsBackgroundService detaches the agent from its controlling terminal.
// The Go runtime cannot fork, so the binary re-executes itself in a new
// session with its standard streams on /dev/null, and the parent exits.
//
// args are the arguments of the detached copy; every path in them must be
// absolute since it runs from the root directory. Nothing is done in the
// foreground, under systemd (which supervises the process itself) or in the
// already detached copy.
func RunAsBackgroundService(foreground bool, args []string) error {
	if os.Getenv(detachedEnv) == "1" {
		unix.Umask(0)
		return nil
	}
	if foreground || os.Getenv("NOTIFY_SOCKET") != "" {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find executable: %v", err)
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := detachCommand(exe, args, devNull)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to detach: %v", err)
	}
	os.Exit(exitSuccess)
	return nil
}

// detachCommand builds the command that runs the detached copy of exe.
func detachCommand(exe string, args []string, devNull *os.File) *exec.Cmd {
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), detachedEnv+"=1")
	cmd.Dir = "/"
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
