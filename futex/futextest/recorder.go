// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package futextest provides a futex.Futex implementation, which records calls
// and does not need a kernel.
package futextest

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nxgtw/go-mtx/futex"
)

// Op is a futex operation kind.
type Op int

const (
	// OpWait is a Wait call.
	OpWait Op = iota
	// OpWake is a Wake call.
	OpWake
)

func (op Op) String() string {
	switch op {
	case OpWait:
		return "wait"
	case OpWake:
		return "wake"
	default:
		return "unknown"
	}
}

// Call is a recorded futex call.
// Val and Timeout are set for waits, Count is set for wakes.
type Call struct {
	Op      Op
	Val     uint32
	Timeout time.Duration
	Count   int
}

// Option configures a Recorder.
type Option func(r *Recorder)

// WithBackend makes the recorder forward calls to f after recording them.
func WithBackend(f futex.Futex) Option {
	return func(r *Recorder) {
		r.backend = f
	}
}

// WithFakeClock makes every bounded wait advance the clock by min(step, timeout)
// instead of blocking. A wait, which consumed its whole timeout, returns futex.ErrTimedOut.
func WithFakeClock(clock *clockwork.FakeClock, step time.Duration) Option {
	return func(r *Recorder) {
		r.clock = clock
		r.step = step
	}
}

// OnWait sets a hook, which is called before every wait.
func OnWait(hook func(c Call)) Option {
	return func(r *Recorder) {
		r.onWait = hook
	}
}

// Recorder is a futex.Futex, which records every call.
// Without a backend it never blocks: waits yield the processor and return as spurious wakeups.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	backend futex.Futex
	clock   *clockwork.FakeClock
	step    time.Duration
	onWait  func(c Call)
}

// NewRecorder returns a new recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wait implements futex.Futex.
func (r *Recorder) Wait(addr *uint32, val uint32, timeout time.Duration) error {
	c := Call{Op: OpWait, Val: val, Timeout: timeout}
	r.record(c)
	if r.onWait != nil {
		r.onWait(c)
	}
	if r.backend != nil {
		return r.backend.Wait(addr, val, timeout)
	}
	if atomic.LoadUint32(addr) != val {
		return nil
	}
	if r.clock != nil && timeout >= 0 {
		if timeout <= r.step {
			r.clock.Advance(timeout)
			return futex.ErrTimedOut
		}
		r.clock.Advance(r.step)
		return nil
	}
	runtime.Gosched()
	return nil
}

// Wake implements futex.Futex.
func (r *Recorder) Wake(addr *uint32, count int) (int, error) {
	r.record(Call{Op: OpWake, Count: count})
	if r.backend != nil {
		return r.backend.Wake(addr, count)
	}
	return 0, nil
}

// Calls returns a copy of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Waits returns the number of recorded waits.
func (r *Recorder) Waits() int {
	return r.count(OpWait)
}

// Wakes returns the number of recorded wakes.
func (r *Recorder) Wakes() int {
	return r.count(OpWake)
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *Recorder) count(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := 0
	for _, c := range r.calls {
		if c.Op == op {
			result++
		}
	}
	return result
}
