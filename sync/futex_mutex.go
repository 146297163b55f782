// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux || freebsd

package sync

import (
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/nxgtw/go-mtx/internal/allocator"
	"github.com/nxgtw/go-mtx/shm"
)

// all implementations must satisfy at least IPCLocker interface.
var (
	_ IPCLocker = (*FutexMutex)(nil)
)

// FutexMutex is a named mutex, whose state is placed into a shared memory object,
// so that it can be used by several processes.
type FutexMutex struct {
	im     *InplaceMutex
	region *shm.Region
	name   string
}

// NewFutexMutex creates a new futex-based mutex.
// This implementation is based on a paper 'Futexes Are Tricky' by Ulrich Drepper.
//	name - object name.
//	flag - flag is a combination of open flags from 'os' package: 0, os.O_CREATE, os.O_CREATE|os.O_EXCL.
//	perm - object's permission bits.
//	opts - mutex options. a shared system futex is used by default.
func NewFutexMutex(name string, flag int, perm os.FileMode, opts ...Option) (*FutexMutex, error) {
	if !checkMutexFlags(flag) {
		return nil, errors.New("invalid open flags")
	}
	// a new object is zero-filled, which is the unlocked state. the word is never written here:
	// another process may have opened and locked the object right after it was created.
	region, _, err := shm.Open(mutexSharedStateName(name), flag, perm, lwmStateSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shared state")
	}
	return &FutexMutex{
		im:     NewInplaceMutex(allocator.ByteSliceData(region.Data()), opts...),
		region: region,
		name:   name,
	}, nil
}

// Lock locks the mutex. It panics on an error.
func (f *FutexMutex) Lock() {
	f.im.Lock()
}

// TryLock makes one attempt to lock the mutex. It returns true on success and false otherwise.
func (f *FutexMutex) TryLock() bool {
	return f.im.TryLock()
}

// LockTimeout tries to lock the locker, waiting for not more, than timeout.
func (f *FutexMutex) LockTimeout(timeout time.Duration) bool {
	return f.im.LockTimeout(timeout)
}

// LockUntil tries to lock the locker until the deadline passes.
func (f *FutexMutex) LockUntil(deadline time.Time) bool {
	return f.im.LockUntil(deadline)
}

// Unlock releases the mutex. It panics on an error.
func (f *FutexMutex) Unlock() {
	f.im.Unlock()
}

// State returns the raw value of the shared mutex word.
func (f *FutexMutex) State() uint32 {
	return f.im.State()
}

// Close indicates, that the object is no longer in use,
// and that the underlying resources can be freed.
func (f *FutexMutex) Close() error {
	return f.region.Close()
}

// Destroy removes the mutex object.
func (f *FutexMutex) Destroy() error {
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to close shm region")
	}
	return DestroyFutexMutex(f.name)
}

// DestroyFutexMutex permanently removes mutex with the given name.
func DestroyFutexMutex(name string) error {
	if err := shm.Destroy(mutexSharedStateName(name)); err != nil {
		return errors.Wrap(err, "failed to destroy memory object")
	}
	return nil
}

func mutexSharedStateName(name string) string {
	return "go-mtx." + name + ".f"
}
