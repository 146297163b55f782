// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

const cEmulatedBuckets = 64

// Emulated is an in-process futex.
// Waiters are kept in hash buckets keyed by the word address. The value check in Wait
// and the enqueueing of the waiter happen under the bucket lock, and Wake takes the same lock,
// so a wake issued after the word was changed is never lost.
type Emulated struct {
	buckets [cEmulatedBuckets]emulatedBucket
}

type emulatedBucket struct {
	mu      sync.Mutex
	waiters []*emulatedWaiter
}

type emulatedWaiter struct {
	addr *uint32
	ch   chan struct{}
}

// NewEmulated returns a new in-process futex.
func NewEmulated() *Emulated {
	return new(Emulated)
}

// Wait implements Futex.
func (e *Emulated) Wait(addr *uint32, val uint32, timeout time.Duration) error {
	b := e.bucket(addr)
	b.mu.Lock()
	if atomic.LoadUint32(addr) != val {
		b.mu.Unlock()
		return nil
	}
	w := &emulatedWaiter{addr: addr, ch: make(chan struct{}, 1)}
	b.waiters = append(b.waiters, w)
	b.mu.Unlock()

	if timeout < 0 {
		<-w.ch
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.ch:
		return nil
	case <-timer.C:
	}
	b.mu.Lock()
	removed := b.remove(w)
	b.mu.Unlock()
	if !removed {
		// a waker has already dequeued us, consume its wake.
		<-w.ch
		return nil
	}
	return ErrTimedOut
}

// Wake implements Futex.
func (e *Emulated) Wake(addr *uint32, count int) (int, error) {
	n := int(wakeCount(count))
	b := e.bucket(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	woken := 0
	kept := b.waiters[:0]
	for _, w := range b.waiters {
		if woken < n && w.addr == addr {
			w.ch <- struct{}{}
			woken++
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(b.waiters); i++ {
		b.waiters[i] = nil
	}
	b.waiters = kept
	return woken, nil
}

// Waiters returns the number of callers currently blocked on addr.
func (e *Emulated) Waiters(addr *uint32) int {
	b := e.bucket(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	result := 0
	for _, w := range b.waiters {
		if w.addr == addr {
			result++
		}
	}
	return result
}

func (e *Emulated) bucket(addr *uint32) *emulatedBucket {
	h := uint64(uintptr(unsafe.Pointer(addr))) >> 2
	h *= 0x9e3779b97f4a7c15
	return &e.buckets[h>>(64-6)]
}

func (b *emulatedBucket) remove(w *emulatedWaiter) bool {
	for i, other := range b.waiters {
		if other == w {
			last := len(b.waiters) - 1
			copy(b.waiters[i:], b.waiters[i+1:])
			b.waiters[last] = nil
			b.waiters = b.waiters[:last]
			return true
		}
	}
	return false
}
