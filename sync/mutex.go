// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"sync/atomic"
	"time"
)

// Mutex is a non-recursive mutual exclusion lock.
// The zero value is an unlocked mutex. A Mutex must not be copied after first use.
//
// A goroutine, which locks a Mutex it already holds, deadlocks. Unlocking an unlocked
// Mutex does nothing, unless the package is built with the mtxdebug tag.
// The lock is not tied to a goroutine: it may be locked by one goroutine and unlocked by another.
//
// The waiting goroutines sleep on a private futex, so a Mutex must not be placed
// into memory shared with other processes. Use InplaceMutex or FutexMutex for that.
type Mutex struct {
	state uint32
}

// Lock locks m. If the lock is already in use, the calling goroutine blocks until the mutex is available.
func (m *Mutex) Lock() {
	if atomic.CompareAndSwapUint32(&m.state, cMutexUnlocked, cMutexLockedNoWaiters) {
		return
	}
	m.lwm().lockSlow(time.Time{}, false)
}

// TryLock makes one attempt to lock the mutex. It returns true on success and false otherwise.
func (m *Mutex) TryLock() bool {
	return m.lwm().tryLock()
}

// TryLockErr is like TryLock, but returns ErrWouldBlock if the mutex is held.
func (m *Mutex) TryLockErr() error {
	return okOr(m.TryLock(), ErrWouldBlock)
}

// LockUntil tries to lock the mutex until the deadline passes.
// It returns true, if the mutex was locked. A deadline in the past still makes one attempt.
func (m *Mutex) LockUntil(deadline time.Time) bool {
	return m.lwm().lockUntil(deadline)
}

// LockUntilErr is like LockUntil, but returns ErrTimedOut on timeout.
func (m *Mutex) LockUntilErr(deadline time.Time) error {
	return okOr(m.LockUntil(deadline), ErrTimedOut)
}

// LockTimeout tries to lock the locker, waiting for not more, than timeout.
func (m *Mutex) LockTimeout(timeout time.Duration) bool {
	return m.lwm().lockTimeout(timeout)
}

// Unlock unlocks m, waking one of the waiters, if there are any.
func (m *Mutex) Unlock() {
	m.lwm().unlock()
}

func (m *Mutex) lwm() lwMutex {
	return lwMutex{ptr: &m.state, cfg: &defaultConfig}
}
