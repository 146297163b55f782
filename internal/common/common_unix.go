// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package common

import (
	"time"

	"golang.org/x/sys/unix"
)

// TimeoutToTimeSpec converts a relative timeout into a timespec.
// A negative timeout means 'wait forever', in this case nil is returned.
func TimeoutToTimeSpec(timeout time.Duration) *unix.Timespec {
	if timeout >= 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		return &ts
	}
	return nil
}
