// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package futex

import (
	"os"
	"time"
	"unsafe"

	"github.com/nxgtw/go-mtx/internal/allocator"
	"github.com/nxgtw/go-mtx/internal/common"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	cFUTEX_WAIT         = 0
	cFUTEX_WAKE         = 1
	cFUTEX_PRIVATE_FLAG = 128
)

var (
	privateFutex = &sysFutex{flags: cFUTEX_PRIVATE_FLAG}
	sharedFutex  = &sysFutex{}
)

// sysFutex is a linux futex. Relative timeouts are measured against CLOCK_MONOTONIC.
type sysFutex struct {
	flags int32
}

// Private returns a futex, which can be used only by threads of the current process.
func Private() Futex {
	return privateFutex
}

// Shared returns a futex, which works for words placed into memory shared between processes.
func Shared() Futex {
	return sharedFutex
}

func (f *sysFutex) Wait(addr *uint32, val uint32, timeout time.Duration) error {
	ts := common.TimeoutToTimeSpec(timeout)
	_, err := futex(unsafe.Pointer(addr), cFUTEX_WAIT|f.flags, val, unsafe.Pointer(ts))
	return waitResult(err)
}

func (f *sysFutex) Wake(addr *uint32, count int) (int, error) {
	var woken int32
	err := common.UninterruptedSyscall(func() error {
		var err error
		woken, err = futex(unsafe.Pointer(addr), cFUTEX_WAKE|f.flags, wakeCount(count), nil)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "futex wake failed")
	}
	return int(woken), nil
}

func futex(addr unsafe.Pointer, op int32, val uint32, ts unsafe.Pointer) (int32, error) {
	r1, _, err := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(addr),
		uintptr(op),
		uintptr(val),
		uintptr(ts),
		0,
		0)
	allocator.Use(addr)
	allocator.Use(ts)
	if err != 0 {
		return 0, os.NewSyscallError("FUTEX", err)
	}
	return int32(r1), nil
}
