// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxgtw/go-mtx/futex"
	"github.com/nxgtw/go-mtx/futex/futextest"
)

func newRecordedMutex(word *uint32, opts ...futextest.Option) (*InplaceMutex, *futextest.Recorder) {
	rec := futextest.NewRecorder(opts...)
	return NewInplaceMutex(unsafe.Pointer(word), WithFutex(rec)), rec
}

func TestMutexFastPathNoFutexCalls(t *testing.T) {
	a := assert.New(t)
	var word uint32
	m, rec := newRecordedMutex(&word)
	for i := 0; i < 100; i++ {
		m.Lock()
		a.Equal(cMutexLockedNoWaiters, m.State())
		m.Unlock()
		a.True(m.TryLock())
		m.Unlock()
		a.True(m.LockTimeout(time.Second))
		m.Unlock()
		a.NoError(m.LockUntilErr(time.Now().Add(-time.Second)))
		m.Unlock()
	}
	a.Equal(cMutexUnlocked, m.State())
	a.Empty(rec.Calls())
}

func TestMutexTryLock(t *testing.T) {
	a := assert.New(t)
	var word uint32
	m, rec := newRecordedMutex(&word)
	a.NoError(m.TryLockErr())
	a.Equal(cMutexLockedNoWaiters, m.State())
	a.False(m.TryLock())
	a.Equal(ErrWouldBlock, m.TryLockErr())
	a.Equal(cMutexLockedNoWaiters, m.State())
	word = cMutexLockedHaveWaiters
	a.False(m.TryLock())
	a.Equal(cMutexLockedHaveWaiters, m.State())
	a.Empty(rec.Calls())
}

func TestMutexUnlockOfUnlocked(t *testing.T) {
	if debugChecks {
		t.Skip("unlock of unlocked mutex panics in debug builds")
	}
	a := assert.New(t)
	var word uint32
	m, rec := newRecordedMutex(&word)
	m.Unlock()
	m.Unlock()
	a.Equal(cMutexUnlocked, m.State())
	a.Empty(rec.Calls())
	a.True(m.TryLock())

	var zero Mutex
	zero.Unlock()
	a.Equal(cMutexUnlocked, zero.state)
}

func TestMutexUnlockWakesOne(t *testing.T) {
	a := assert.New(t)
	var word uint32
	m, rec := newRecordedMutex(&word)
	word = cMutexLockedHaveWaiters
	m.Unlock()
	a.Equal(cMutexUnlocked, m.State())
	want := []futextest.Call{{Op: futextest.OpWake, Count: 1}}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
}

// TestMutexContendedHandoff runs the following scenario:
// A locks the mutex without futex calls, B fails to trylock it, then blocks in Lock.
// A unlocks the mutex and wakes B, which gets the lock.
func TestMutexContendedHandoff(t *testing.T) {
	a := assert.New(t)
	var word uint32
	m, rec := newRecordedMutex(&word, futextest.WithBackend(futex.NewEmulated()))

	m.Lock()
	a.Empty(rec.Calls())
	a.False(m.TryLock())
	a.Equal(cMutexLockedNoWaiters, m.State())

	locked := make(chan struct{})
	go func() {
		m.Lock()
		close(locked)
	}()
	require.Eventually(t, func() bool { return rec.Waits() > 0 }, 5*time.Second, time.Millisecond)
	select {
	case <-locked:
		t.Fatal("mutex was locked twice")
	default:
	}
	a.Equal(cMutexLockedHaveWaiters, m.State())

	m.Unlock()
	select {
	case <-locked:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken")
	}
	for _, c := range rec.Calls() {
		if c.Op == futextest.OpWait {
			a.Equal(cMutexLockedHaveWaiters, c.Val)
			a.Equal(futex.Infinite, c.Timeout)
		} else {
			a.Equal(1, c.Count)
		}
	}
	a.Equal(1, rec.Wakes())
	// B has slept, so it keeps the 'have waiters' state, as it cannot know whether it was the last waiter.
	a.Equal(cMutexLockedHaveWaiters, m.State())
	m.Unlock()
	a.Equal(cMutexUnlocked, m.State())
	a.Equal(2, rec.Wakes())
}

func TestMutexSpuriousWakeups(t *testing.T) {
	a := assert.New(t)
	var word uint32
	// without a backend every wait returns immediately, as if it was a spurious wakeup.
	m, rec := newRecordedMutex(&word)
	m.Lock()
	locked := make(chan struct{})
	go func() {
		m.Lock()
		close(locked)
	}()
	require.Eventually(t, func() bool { return rec.Waits() > 10 }, 5*time.Second, time.Millisecond)
	select {
	case <-locked:
		t.Fatal("spurious wakeup acquired a locked mutex")
	default:
	}
	m.Unlock()
	<-locked
	a.Equal(cMutexLockedHaveWaiters, m.State())
	m.Unlock()
}

func TestMutexWakesWaitersOneByOne(t *testing.T) {
	a := assert.New(t)
	var word uint32
	emulated := futex.NewEmulated()
	m, rec := newRecordedMutex(&word, futextest.WithBackend(emulated))
	const waiters = 3

	m.Lock()
	acquired := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			m.Lock()
			acquired <- struct{}{}
		}()
	}
	require.Eventually(t, func() bool { return emulated.Waiters(&word) == waiters }, 5*time.Second, time.Millisecond)
	for i := waiters; i > 0; i-- {
		m.Unlock()
		select {
		case <-acquired:
		case <-time.After(5 * time.Second):
			t.Fatal("no waiter was woken")
		}
		select {
		case <-acquired:
			t.Fatal("two waiters own the mutex")
		case <-time.After(20 * time.Millisecond):
		}
		a.Equal(cMutexLockedHaveWaiters, m.State())
		a.Equal(i-1, emulated.Waiters(&word))
	}
	m.Unlock()
	a.Equal(cMutexUnlocked, m.State())
	a.Equal(waiters+1, rec.Wakes())
}

func TestMutexLockUntilFakeClock(t *testing.T) {
	a := assert.New(t)
	var word uint32
	clock := clockwork.NewFakeClock()
	rec := futextest.NewRecorder(futextest.WithFakeClock(clock, 10*time.Millisecond))
	m := NewInplaceMutex(unsafe.Pointer(&word), WithFutex(rec), WithClock(clock))
	m.Lock()

	start := clock.Now()
	a.Equal(ErrTimedOut, m.LockUntilErr(start.Add(35*time.Millisecond)))
	a.Equal(35*time.Millisecond, clock.Since(start))
	want := []futextest.Call{
		{Op: futextest.OpWait, Val: cMutexLockedHaveWaiters, Timeout: 35 * time.Millisecond},
		{Op: futextest.OpWait, Val: cMutexLockedHaveWaiters, Timeout: 25 * time.Millisecond},
		{Op: futextest.OpWait, Val: cMutexLockedHaveWaiters, Timeout: 15 * time.Millisecond},
		{Op: futextest.OpWait, Val: cMutexLockedHaveWaiters, Timeout: 5 * time.Millisecond},
	}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
	a.Equal(cMutexLockedHaveWaiters, m.State())

	rec.Reset()
	a.False(m.LockTimeout(0))
	a.Empty(rec.Calls())
}

func TestMutexLockUntilAcquiresBeforeDeadline(t *testing.T) {
	a := assert.New(t)
	var word uint32
	clock := clockwork.NewFakeClock()
	var m *InplaceMutex
	waits := 0
	rec := futextest.NewRecorder(
		futextest.WithFakeClock(clock, 10*time.Millisecond),
		futextest.OnWait(func(c futextest.Call) {
			if waits++; waits == 2 {
				m.Unlock()
			}
		}),
	)
	m = NewInplaceMutex(unsafe.Pointer(&word), WithFutex(rec), WithClock(clock))
	m.Lock()
	start := clock.Now()
	a.True(m.LockUntil(start.Add(time.Second)))
	a.Equal(10*time.Millisecond, clock.Since(start))
	want := []futextest.Call{
		{Op: futextest.OpWait, Val: cMutexLockedHaveWaiters, Timeout: time.Second},
		{Op: futextest.OpWait, Val: cMutexLockedHaveWaiters, Timeout: 990 * time.Millisecond},
		{Op: futextest.OpWake, Count: 1},
	}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
	a.Equal(cMutexLockedHaveWaiters, m.State())
}

func TestMutexLockUntilPastDeadline(t *testing.T) {
	a := assert.New(t)
	var word uint32
	clock := clockwork.NewFakeClock()
	rec := futextest.NewRecorder(futextest.WithFakeClock(clock, time.Millisecond))
	m := NewInplaceMutex(unsafe.Pointer(&word), WithFutex(rec), WithClock(clock))

	a.True(m.LockUntil(clock.Now().Add(-time.Hour)))
	a.False(m.LockUntil(clock.Now().Add(-time.Hour)))
	// no waiter has registered itself, so unlock does not need to wake anybody.
	a.Equal(cMutexLockedNoWaiters, m.State())
	m.Unlock()
	a.Empty(rec.Calls())
}

// TestMutexTimedWaiterKeepsWaitersMark runs the following scenario:
// W2 sleeps in Lock. W1 sleeps in LockUntil, takes the only wake issued by the holder,
// but a newcomer locks the mutex first, and W1's deadline passes.
// W1 must leave the mutex marked as having waiters, so that the newcomer's unlock wakes W2.
func TestMutexTimedWaiterKeepsWaitersMark(t *testing.T) {
	a := assert.New(t)
	var word uint32
	emulated := futex.NewEmulated()
	holder := NewInplaceMutex(unsafe.Pointer(&word), WithFutex(emulated))
	holder.Lock()

	w2Locked := make(chan struct{})
	go func() {
		holder.Lock()
		close(w2Locked)
	}()
	require.Eventually(t, func() bool { return emulated.Waiters(&word) == 1 }, 5*time.Second, time.Millisecond)
	a.Equal(cMutexLockedHaveWaiters, holder.State())

	clock := clockwork.NewFakeClock()
	rec := futextest.NewRecorder(futextest.OnWait(func(c futextest.Call) {
		// the holder released the mutex, its wake went to W1, and a newcomer locked it.
		atomic.StoreUint32(&word, cMutexLockedNoWaiters)
		clock.Advance(c.Timeout)
	}))
	w1 := NewInplaceMutex(unsafe.Pointer(&word), WithFutex(rec), WithClock(clock))
	a.False(w1.LockUntil(clock.Now().Add(time.Second)))
	a.Equal(1, rec.Waits())
	a.Equal(cMutexLockedHaveWaiters, holder.State())
	a.Equal(1, emulated.Waiters(&word))

	// the newcomer unlocks.
	holder.Unlock()
	select {
	case <-w2Locked:
	case <-time.After(5 * time.Second):
		t.Fatal("sleeping waiter was not woken")
	}
	holder.Unlock()
	a.Equal(cMutexUnlocked, holder.State())
}

func TestMutexSpin(t *testing.T) {
	a := assert.New(t)
	var word uint32
	rec := futextest.NewRecorder()
	var m *InplaceMutex
	m = NewInplaceMutex(unsafe.Pointer(&word), WithFutex(rec), WithSpinCount(1000))
	m.Lock()
	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
	}()
	m.Unlock()
	<-done
	m.Unlock()
	a.Equal(cMutexUnlocked, m.State())
	a.Equal(0, NewInplaceMutex(unsafe.Pointer(&word), WithSpinCount(-1)).cfg.spinCount)
}

type failingFutex struct{}

func (failingFutex) Wait(addr *uint32, val uint32, timeout time.Duration) error {
	return errors.New("bad address")
}

func (failingFutex) Wake(addr *uint32, count int) (int, error) {
	return 0, errors.New("bad address")
}

func TestMutexFutexFailure(t *testing.T) {
	a := assert.New(t)
	var word uint32
	var buf bytes.Buffer
	m := NewInplaceMutex(unsafe.Pointer(&word), WithFutex(failingFutex{}), WithLogger(zerolog.New(&buf)))
	m.Lock()
	a.Panics(func() { m.Lock() })
	a.Contains(buf.String(), "futex call failed")
	a.Contains(buf.String(), `"op":"wait"`)

	buf.Reset()
	a.Equal(cMutexLockedHaveWaiters, m.State())
	a.Panics(func() { m.Unlock() })
	a.Contains(buf.String(), `"op":"wake"`)
	a.Equal(cMutexUnlocked, m.State())
}

func TestNewInplaceMutexInvalidMemory(t *testing.T) {
	a := assert.New(t)
	var words [2]uint32
	a.Panics(func() { NewInplaceMutex(nil) })
	a.Panics(func() { NewInplaceMutex(unsafe.Add(unsafe.Pointer(&words[0]), 1)) })
	words[0] = cMutexLockedHaveWaiters
	m := NewInplaceMutex(unsafe.Pointer(&words[0]))
	m.Init()
	a.Equal(cMutexUnlocked, m.State())
}

func TestInplaceMutexLock(t *testing.T) {
	var word uint32
	m := NewInplaceMutex(unsafe.Pointer(&word), WithFutex(futex.NewEmulated()))
	testLockerLock(t, m)
	testLockerTryLock(t, m)
	testLockerExclusion(t, m, 8, 2000)
	testLockerMixed(t, m, 8, 2000)
	testLockerTimeout(t, m, 100*time.Millisecond)
}

func TestInplaceMutexSystemFutex(t *testing.T) {
	var word uint32
	m := NewInplaceMutex(unsafe.Pointer(&word))
	testLockerExclusion(t, m, 8, 2000)
	testLockerMixed(t, m, 8, 2000)
	testLockerTimeout(t, m, 100*time.Millisecond)
}
