// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"time"
	"unsafe"

	"github.com/nxgtw/go-mtx/internal/allocator"
)

// InplaceMutex is a mutex, whose state lives in a caller-provided memory location,
// for instance, in a shared memory region.
type InplaceMutex struct {
	lwm lwMutex
	cfg config
}

// NewInplaceMutex creates a mutex on the given memory location.
// The location must be 4-byte aligned and at least 4 bytes long.
// It panics, if ptr is not aligned.
// The memory is not initialized, call Init, if this is a new mutex.
func NewInplaceMutex(ptr unsafe.Pointer, opts ...Option) *InplaceMutex {
	if ptr == nil || !allocator.IsAligned32(ptr) {
		panic("inplace mutex: invalid memory location")
	}
	result := &InplaceMutex{cfg: newConfig(opts)}
	result.lwm = lwMutex{ptr: (*uint32)(ptr), cfg: &result.cfg}
	return result
}

// Init writes initial value into mutex's memory location.
func (im *InplaceMutex) Init() {
	im.lwm.init()
}

// Lock locks the mutex.
func (im *InplaceMutex) Lock() {
	im.lwm.lock()
}

// TryLock makes one attempt to lock the mutex. It returns true on success and false otherwise.
func (im *InplaceMutex) TryLock() bool {
	return im.lwm.tryLock()
}

// TryLockErr is like TryLock, but returns ErrWouldBlock if the mutex is held.
func (im *InplaceMutex) TryLockErr() error {
	return okOr(im.lwm.tryLock(), ErrWouldBlock)
}

// LockUntil tries to lock the mutex until the deadline passes.
func (im *InplaceMutex) LockUntil(deadline time.Time) bool {
	return im.lwm.lockUntil(deadline)
}

// LockUntilErr is like LockUntil, but returns ErrTimedOut on timeout.
func (im *InplaceMutex) LockUntilErr(deadline time.Time) error {
	return okOr(im.lwm.lockUntil(deadline), ErrTimedOut)
}

// LockTimeout tries to lock the locker, waiting for not more, than timeout.
func (im *InplaceMutex) LockTimeout(timeout time.Duration) bool {
	return im.lwm.lockTimeout(timeout)
}

// Unlock releases the mutex.
func (im *InplaceMutex) Unlock() {
	im.lwm.unlock()
}

// State returns the raw value of the mutex word: 0 - unlocked, 1 - locked, 2 - locked with waiters.
func (im *InplaceMutex) State() uint32 {
	return im.lwm.state()
}
