// Copyright 2015 Aleksandr Demakin. All rights reserved.

package sync

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTimedOut is returned, when a deadline passed before the mutex was acquired.
	ErrTimedOut = errors.New("mutex lock timed out")
	// ErrWouldBlock is returned by TryLockErr, if the mutex is held.
	ErrWouldBlock = errors.New("mutex is locked")
	// ErrUnlockOfUnlocked is a panic value of Unlock in builds with the mtxdebug tag.
	ErrUnlockOfUnlocked = errors.New("unlock of unlocked mutex")
)

// this is to ensure, that all implementations satisfy the same minimal interface.
var (
	_ TimedLocker = (*Mutex)(nil)
	_ TimedLocker = (*InplaceMutex)(nil)
)

// TimedLocker is a locker, which can be acquired without blocking or with a bounded wait.
type TimedLocker interface {
	sync.Locker
	// TryLock makes one attempt to lock the mutex. It returns true on success.
	TryLock() bool
	// LockTimeout tries to lock the locker, waiting for not more, than timeout.
	LockTimeout(timeout time.Duration) bool
	// LockUntil tries to lock the locker until the deadline passes.
	LockUntil(deadline time.Time) bool
}

// IPCLocker is a locker, which lives in an external object and must be closed.
type IPCLocker interface {
	TimedLocker
	io.Closer
}

func checkMutexFlags(flags int) bool {
	return flags & ^(os.O_CREATE|os.O_EXCL) == 0 && flags != os.O_EXCL
}

func okOr(ok bool, err error) error {
	if ok {
		return nil
	}
	return err
}
