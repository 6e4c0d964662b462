package service

import "errors"

// ErrBackpressure is returned when the warm queue has no room for a job.
var ErrBackpressure = errors.New("warm queue full")
