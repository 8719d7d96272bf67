//go:build !unix

package activitylog

import (
	"os"
	"syscall"
)

var closeSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func catchableSignals() []os.Signal {
	return closeSignals
}

// SignalName returns the platform name of sig.
func SignalName(sig os.Signal) string {
	return sig.String()
}

func exitCode(os.Signal) int {
	return 1
}
