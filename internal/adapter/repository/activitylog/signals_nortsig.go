//go:build unix && !linux

package activitylog

import "syscall"

func realtimeSignals() []syscall.Signal { return nil }

func realtimeName(syscall.Signal) string { return "" }
