// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package futex provides wait-while-equal and wake-N primitives on a 32-bit memory word.
//
// System implementations use the linux futex(2) or freebsd _umtx_op(2) calls.
// On other platforms, and in tests, an in-process emulation with the same contract is used.
package futex

import (
	"math"
	"time"

	"github.com/nxgtw/go-mtx/internal/common"

	"github.com/pkg/errors"
)

const (
	// Infinite is a timeout value, which makes Wait block until woken.
	Infinite = time.Duration(-1)
	// WakeAll can be passed to Wake to wake every waiter.
	WakeAll = math.MaxInt32
)

var (
	// ErrTimedOut is returned by Wait, if the timeout elapsed before a wake.
	ErrTimedOut = errors.New("futex wait timed out")
)

// Futex is a kernel-style wait/wake facility keyed by a memory address.
type Futex interface {
	// Wait blocks the caller while *addr == val, for not longer, than timeout.
	// A negative timeout means 'no timeout'.
	// It returns nil if woken, on a spurious wakeup, on a signal,
	// or if *addr != val at the moment of the call: callers must re-check the word.
	// It returns ErrTimedOut, if the timeout elapsed.
	Wait(addr *uint32, val uint32, timeout time.Duration) error
	// Wake wakes up to count callers waiting on addr and returns the number of woken waiters.
	Wake(addr *uint32, count int) (int, error)
}

// waitResult maps a raw wait syscall error onto the Futex.Wait contract.
func waitResult(err error) error {
	switch {
	case err == nil, common.IsWouldBlockErr(err), common.IsInterruptedSyscallErr(err):
		return nil
	case common.IsTimeoutErr(err):
		return ErrTimedOut
	default:
		return errors.Wrap(err, "futex wait failed")
	}
}

func wakeCount(count int) uint32 {
	if count < 0 || count > WakeAll {
		return WakeAll
	}
	return uint32(count)
}
