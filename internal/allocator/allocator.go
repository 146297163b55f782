// Copyright 2015 Aleksandr Demakin. All rights reserved.

package allocator

import (
	"runtime"
	"unsafe"
)

// ByteSliceData returns a pointer to the data of the given byte slice.
func ByteSliceData(slice []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(slice))
}

// ByteSliceFromUnsafePointer returns a slice of bytes with given length and capacity.
// Memory pointed by the unsafe.Pointer is used for the slice.
func ByteSliceFromUnsafePointer(memory unsafe.Pointer, length, capacity int) []byte {
	return unsafe.Slice((*byte)(memory), capacity)[:length]
}

// IsAligned32 returns true, if the pointer can hold an atomically accessed uint32.
func IsAligned32(ptr unsafe.Pointer) bool {
	return uintptr(ptr)%unsafe.Alignof(uint32(0)) == 0
}

// Use ensures, that the object p points to is kept live until that point.
// It must be called after a raw syscall, which received p as an uintptr.
func Use(p unsafe.Pointer) {
	runtime.KeepAlive(p)
}
