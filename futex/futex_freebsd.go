// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build freebsd

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
	cUMTX_OP_WAKE              = 0x3
	cUMTX_OP_WAIT_UINT         = 0xb
	cUMTX_OP_WAIT_UINT_PRIVATE = 0xf
	cUMTX_OP_WAKE_PRIVATE      = 0x10
)

var (
	privateFutex = &sysFutex{waitOp: cUMTX_OP_WAIT_UINT_PRIVATE, wakeOp: cUMTX_OP_WAKE_PRIVATE}
	sharedFutex  = &sysFutex{waitOp: cUMTX_OP_WAIT_UINT, wakeOp: cUMTX_OP_WAKE}
)

// sysFutex is a freebsd umtx-based futex.
type sysFutex struct {
	waitOp int32
	wakeOp int32
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
	_, err := umtxOp(unsafe.Pointer(addr), f.waitOp, val, nil, unsafe.Pointer(ts))
	return waitResult(err)
}

func (f *sysFutex) Wake(addr *uint32, count int) (int, error) {
	var woken int32
	err := common.UninterruptedSyscall(func() error {
		var err error
		woken, err = umtxOp(unsafe.Pointer(addr), f.wakeOp, wakeCount(count), nil, nil)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "umtx wake failed")
	}
	return int(woken), nil
}

func umtxOp(addr unsafe.Pointer, mode int32, val uint32, ptr2, ts unsafe.Pointer) (int32, error) {
	r1, _, err := unix.Syscall6(unix.SYS__UMTX_OP,
		uintptr(addr),
		uintptr(mode),
		uintptr(val),
		uintptr(ptr2),
		uintptr(ts),
		0)
	allocator.Use(addr)
	allocator.Use(ptr2)
	allocator.Use(ts)
	if err != 0 {
		return 0, os.NewSyscallError("SYS__UMTX_OP", err)
	}
	return int32(r1), nil
}
