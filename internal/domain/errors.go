package domain

import "errors"

var (
	// ErrLogFileMissing is returned when the current activity file disappeared
	// from disk. The persistence component cannot recover from it.
	ErrLogFileMissing = errors.New("activity log file is missing")
	// ErrPersistenceClosed is returned by writes after shutdown.
	ErrPersistenceClosed = errors.New("activity persistence is closed")
	// ErrUnknownFeature is returned for feature names not in the registry.
	ErrUnknownFeature = errors.New("unknown feature")
	ErrNotConnected   = errors.New("chat client is not connected")
	ErrNoActiveRaffle = errors.New("no active raffle")
)
