//go:build unix

package activitylog

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

var closeSignals = []os.Signal{
	unix.SIGINT,
	unix.SIGTERM,
	unix.SIGQUIT,
	unix.SIGHUP,
	unix.SIGABRT,
	unix.SIGALRM,
	unix.SIGSEGV,
	unix.SIGBUS,
}

// SIGKILL and SIGSTOP cannot be caught; SIGURG is used by the Go runtime
// for goroutine preemption.
var uncatchable = map[syscall.Signal]bool{
	unix.SIGKILL: true,
	unix.SIGSTOP: true,
	unix.SIGURG:  true,
}

func catchableSignals() []os.Signal {
	var out []os.Signal
	for n := 1; n < 65; n++ {
		sig := syscall.Signal(n)
		if uncatchable[sig] || unix.SignalName(sig) == "" {
			continue
		}
		out = append(out, sig)
	}
	for _, sig := range realtimeSignals() {
		out = append(out, sig)
	}
	return out
}

// SignalName returns the conventional name of sig, such as SIGTERM.
func SignalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
		if name := realtimeName(s); name != "" {
			return name
		}
	}
	return sig.String()
}

func exitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
