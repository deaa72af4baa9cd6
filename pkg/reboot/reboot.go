// Package reboot terminates or replaces the current process between jobs so
// that the next scheduled job starts in a fresh runtime.
package reboot

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Rebooter ends the current process lifetime. On the soft path the call
// never returns on success (the process image is replaced); on the hard path
// the host is rebooted by an operator-configured command.
type Rebooter interface {
	Reboot(hard bool) error
}

// Host reboots the machine it runs on, or re-execs the current binary.
type Host struct {
	// HardCommand is the command that triggers a hardware reboot. How the
	// host actually power-cycles is deliberately outside this package;
	// operators point this at whatever their machine needs.
	HardCommand []string
}

// NewHost returns a Host rebooter with the conventional shutdown command.
func NewHost() *Host {
	return &Host{HardCommand: []string{"shutdown", "-r", "now"}}
}

// Reboot performs the process termination.
//
// hard=false replaces the current process image with a re-invocation of the
// same command line; the next "iteration" of the run loop is a brand-new
// process that reads the manifest from disk. Exec only returns on failure.
//
// hard=true runs HardCommand and exits the process on success, leaving the
// host to finish shutting down.
func (h *Host) Reboot(hard bool) error {
	if hard {
		cmd := exec.Command(h.HardCommand[0], h.HardCommand[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("hard reboot command failed: %w", err)
		}
		// Shutdown is in progress; nothing left for this process to do.
		os.Exit(0)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable for re-exec: %w", err)
	}
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("replace process image: %w", err)
	}
	// Unreachable: Exec does not return on success.
	return nil
}
