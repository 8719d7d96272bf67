package activitylog

import (
	"fmt"
	"syscall"
)

// Real-time signals as seen through glibc, which keeps 32 and 33 for itself.
const (
	sigRTMin = 34
	sigRTMax = 64
)

func realtimeSignals() []syscall.Signal {
	out := make([]syscall.Signal, 0, sigRTMax-sigRTMin+1)
	for n := sigRTMin; n <= sigRTMax; n++ {
		out = append(out, syscall.Signal(n))
	}
	return out
}

func realtimeName(sig syscall.Signal) string {
	switch {
	case sig == sigRTMin:
		return "SIGRTMIN"
	case sig == sigRTMax:
		return "SIGRTMAX"
	case sig > sigRTMin && sig < sigRTMax:
		return fmt.Sprintf("SIGRTMIN+%d", int(sig)-sigRTMin)
	}
	return ""
}
