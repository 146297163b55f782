// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/nxgtw/go-mtx/futex"
)

const (
	cMutexUnlocked          = uint32(0)
	cMutexLockedNoWaiters   = uint32(1)
	cMutexLockedHaveWaiters = uint32(2)
)

const (
	lwmStateSize = 4
)

// lwMutex is a lightweight mutex implementation operating on a uint32 memory cell.
// it tries to minimize amount of syscalls needed to do locking.
// actual sleeping is implemented by a futex.Futex object.
type lwMutex struct {
	ptr *uint32
	cfg *config
}

// init writes initial value into mutex's memory location.
func (lw lwMutex) init() {
	atomic.StoreUint32(lw.ptr, cMutexUnlocked)
}

func (lw lwMutex) tryLock() bool {
	return atomic.CompareAndSwapUint32(lw.ptr, cMutexUnlocked, cMutexLockedNoWaiters)
}

func (lw lwMutex) lock() {
	if lw.tryLock() {
		return
	}
	lw.lockSlow(time.Time{}, false)
}

func (lw lwMutex) lockUntil(deadline time.Time) bool {
	if lw.tryLock() {
		return true
	}
	return lw.lockSlow(deadline, true)
}

func (lw lwMutex) lockTimeout(timeout time.Duration) bool {
	if lw.tryLock() {
		return true
	}
	return lw.lockSlow(lw.cfg.clock.Now().Add(timeout), true)
}

// lockSlow is the contended path. It returns false only if timed is set and the deadline passed.
func (lw lwMutex) lockSlow(deadline time.Time, timed bool) bool {
	for i := 0; i < lw.cfg.spinCount; i++ {
		runtime.Gosched()
		if lw.tryLock() {
			return true
		}
	}
	// until the first sleep, there is no evidence of other waiters.
	// after that, the 'have waiters' state must be kept, as others can still sleep in the kernel.
	acquired := cMutexLockedNoWaiters
	state := atomic.LoadUint32(lw.ptr)
	for {
		if state == cMutexUnlocked {
			if atomic.CompareAndSwapUint32(lw.ptr, cMutexUnlocked, acquired) {
				return true
			}
			state = atomic.LoadUint32(lw.ptr)
			continue
		}
		timeout := futex.Infinite
		if timed {
			if timeout = lw.cfg.clock.Until(deadline); timeout <= 0 {
				// a waiter, which has slept, may have consumed the wake meant for others.
				// the 'have waiters' mark must be restored before giving up.
				if acquired == cMutexLockedHaveWaiters && state == cMutexLockedNoWaiters {
					if !atomic.CompareAndSwapUint32(lw.ptr, cMutexLockedNoWaiters, cMutexLockedHaveWaiters) {
						state = atomic.LoadUint32(lw.ptr)
						continue
					}
				}
				return false
			}
		}
		if state == cMutexLockedNoWaiters {
			if !atomic.CompareAndSwapUint32(lw.ptr, cMutexLockedNoWaiters, cMutexLockedHaveWaiters) {
				state = atomic.LoadUint32(lw.ptr)
				continue
			}
		}
		if err := lw.cfg.futex.Wait(lw.ptr, cMutexLockedHaveWaiters, timeout); err != nil {
			if !errors.Is(err, futex.ErrTimedOut) {
				lw.fail("wait", err)
			}
		}
		acquired = cMutexLockedHaveWaiters
		state = atomic.LoadUint32(lw.ptr)
	}
}

func (lw lwMutex) unlock() {
	switch atomic.SwapUint32(lw.ptr, cMutexUnlocked) {
	case cMutexLockedHaveWaiters:
		if _, err := lw.cfg.futex.Wake(lw.ptr, 1); err != nil {
			lw.fail("wake", err)
		}
	case cMutexUnlocked:
		if debugChecks {
			panic(ErrUnlockOfUnlocked)
		}
	}
}

func (lw lwMutex) state() uint32 {
	return atomic.LoadUint32(lw.ptr)
}

// fail reports a futex error, which can be caused only by a misuse or a broken platform.
func (lw lwMutex) fail(op string, err error) {
	err = errors.Wrapf(err, "mutex %s failed", op)
	lw.cfg.logger.Error().
		Err(err).
		Str("op", op).
		Uint32("state", lw.state()).
		Msg("futex call failed")
	panic(err)
}
