//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// setDaemonAttrs is a no-op; Windows has no Setsid.
func setDaemonAttrs(_ *exec.Cmd) {}

func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// stopSignals returns the graceful and forced signals used by serve stop.
// Windows cannot deliver SIGTERM to another process, so both kill.
func stopSignals() (graceful, force syscall.Signal) {
	return syscall.SIGKILL, syscall.SIGKILL
}
