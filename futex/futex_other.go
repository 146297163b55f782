// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build !linux && !freebsd

package futex

var processFutex = NewEmulated()

// Private returns the process-wide emulated futex.
func Private() Futex {
	return processFutex
}

// Shared returns the process-wide emulated futex.
// Words in memory shared with other processes are not supported on this platform.
func Shared() Futex {
	return processFutex
}
