package monitor

import "errors"

var (
	// ErrMissingDependency is returned by New when the detector or subscriber is nil.
	ErrMissingDependency = errors.New("monitor: detector and subscriber are required")

	// ErrAlreadyStarted is returned by Start on a running monitor.
	ErrAlreadyStarted = errors.New("monitor: already started")

	// ErrStopped is returned when watching or starting a stopped monitor.
	ErrStopped = errors.New("monitor: stopped")

	// ErrInvalidFrame is returned for live messages that are not a JSON frame.
	ErrInvalidFrame = errors.New("monitor: invalid frame")
)
