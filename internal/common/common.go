// Copyright 2016 Aleksandr Demakin. All rights reserved.

package common

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// SyscallErrHasCode returns true, if the given error is a syscall error with the given code.
// Wrapped errors are unwrapped with errors.Cause first.
func SyscallErrHasCode(err error, code syscall.Errno) bool {
	if err == nil {
		return false
	}
	switch typed := errors.Cause(err).(type) {
	case *os.SyscallError:
		if errno, ok := typed.Err.(syscall.Errno); ok {
			return errno == code
		}
	case syscall.Errno:
		return typed == code
	}
	return false
}

// IsInterruptedSyscallErr returns true, if the given error is an EINTR.
func IsInterruptedSyscallErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EINTR)
}

// IsTimeoutErr returns true, if the given error is an ETIMEDOUT syscall error.
func IsTimeoutErr(err error) bool {
	return SyscallErrHasCode(err, syscall.ETIMEDOUT)
}

// IsWouldBlockErr returns true, if the syscall did not block, because the
// observed state differed from the expected one.
func IsWouldBlockErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EAGAIN) || SyscallErrHasCode(err, syscall.EWOULDBLOCK)
}

// UninterruptedSyscall runs a function in a loop.
// If an error, returned by the function is EINTR, it is called once again.
func UninterruptedSyscall(f func() error) error {
	for {
		err := f()
		if !IsInterruptedSyscallErr(err) {
			return err
		}
	}
}

// OpenOrCreate performs open/create logic for objects, which do not support
// O_CREATE without O_EXCL atomically.
// flag is a combination of os.O_CREATE and os.O_EXCL:
//	0 - open only.
//	os.O_CREATE - open an existing object, or create a new one.
//	os.O_CREATE|os.O_EXCL - create a new object, fail if it exists.
// creator is called with true to create an object exclusively, and with false to open it.
// It returns true, if the object was created.
func OpenOrCreate(creator func(create bool) error, flag int) (bool, error) {
	switch flag & (os.O_CREATE | os.O_EXCL) {
	case 0:
		return false, creator(false)
	case os.O_CREATE | os.O_EXCL:
		if err := creator(true); err != nil {
			return false, err
		}
		return true, nil
	case os.O_CREATE:
		const attempts = 16
		var err error
		for attempt := 0; attempt < attempts; attempt++ {
			if err = creator(true); !os.IsExist(errors.Cause(err)) {
				return err == nil, err
			}
			if err = creator(false); !os.IsNotExist(errors.Cause(err)) {
				return false, err
			}
		}
		return false, err
	default:
		return false, errors.New("invalid open flags")
	}
}
