// Copyright 2015 Aleksandr Demakin. All rights reserved.

package sync

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"

	"github.com/nxgtw/go-mtx/internal/testutil"
)

func testLockerLock(t *testing.T, lk TimedLocker) bool {
	a := assert.New(t)
	var g errgroup.Group
	sharedValue := 0
	for i := 0; i < 30; i++ {
		g.Go(func() error {
			lk.Lock()
			for i := 0; i < 1000; i++ {
				sharedValue++
			}
			lk.Unlock()
			return nil
		})
	}
	a.NoError(g.Wait())
	return a.Equal(30000, sharedValue)
}

// testLockerExclusion checks, that critical sections never overlap.
func testLockerExclusion(t *testing.T, lk TimedLocker, goroutines, iterations int) bool {
	a := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	var inside, overlaps int32
	var total int64
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < iterations; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				lk.Lock()
				if atomic.AddInt32(&inside, 1) != 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				total++
				atomic.AddInt32(&inside, -1)
				lk.Unlock()
			}
			return nil
		})
	}
	if !a.NoError(g.Wait()) {
		return false
	}
	a.Equal(int32(0), atomic.LoadInt32(&overlaps))
	return a.Equal(int64(goroutines*iterations), total)
}

func testLockerTryLock(t *testing.T, lk TimedLocker) bool {
	a := assert.New(t)
	if !a.True(lk.TryLock()) {
		return false
	}
	result := make(chan bool)
	go func() {
		result <- lk.TryLock()
	}()
	a.False(<-result)
	lk.Unlock()
	go func() {
		result <- lk.TryLock()
	}()
	if !a.True(<-result) {
		return false
	}
	lk.Unlock()
	return true
}

// testLockerTimeout checks timed locking against a mutex held for hold duration.
func testLockerTimeout(t *testing.T, lk TimedLocker, hold time.Duration) bool {
	a := assert.New(t)
	lk.Lock()
	released := make(chan struct{})
	go func() {
		time.Sleep(hold)
		lk.Unlock()
		close(released)
	}()

	short := hold / 10
	start := time.Now()
	a.False(lk.LockTimeout(short))
	a.True(time.Since(start) >= short)

	start = time.Now()
	a.True(lk.LockUntil(time.Now().Add(hold * 25)))
	a.True(time.Since(start) < hold*25)
	<-released
	lk.Unlock()
	return !t.Failed()
}

// testLockerMixed runs goroutines, which use Lock, against goroutines, which use short LockTimeout calls.
// Timed waiters often give up after being woken, and this must not leave other waiters asleep.
func testLockerMixed(t *testing.T, lk TimedLocker, goroutines, iterations int) bool {
	a := assert.New(t)
	var g errgroup.Group
	var total, timedOut int64
	for i := 0; i < goroutines; i++ {
		timed := i%2 == 1
		g.Go(func() error {
			for j := 0; j < iterations; j++ {
				if timed {
					if !lk.LockTimeout(time.Duration(j%50+1) * time.Microsecond) {
						atomic.AddInt64(&timedOut, 1)
						continue
					}
				} else {
					lk.Lock()
				}
				total++
				runtime.Gosched()
				lk.Unlock()
			}
			return nil
		})
	}
	var err error
	if !a.True(testutil.WaitForFunc(func() { err = g.Wait() }, time.Minute), "some goroutines are still waiting for the mutex") {
		return false
	}
	a.NoError(err)
	return a.Equal(int64(goroutines*iterations), total+atomic.LoadInt64(&timedOut))
}
