package service

import "errors"

// Sentinel errors for degraded paths.
var (
	ErrRemoteDisabled = errors.New("remote analysis disabled")
	ErrLocalPanic     = errors.New("local scan panicked")
	ErrNoLocalPeople  = errors.New("no usable local detections")
)
