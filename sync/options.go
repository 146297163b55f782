// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/nxgtw/go-mtx/futex"
)

// config holds collaborators of the mutex state machine.
type config struct {
	futex     futex.Futex
	clock     clockwork.Clock
	logger    zerolog.Logger
	spinCount int
}

// defaultConfig is used by the zero value of Mutex.
var defaultConfig = config{
	futex:  futex.Private(),
	clock:  clockwork.NewRealClock(),
	logger: zerolog.Nop(),
}

// Option configures an InplaceMutex or a FutexMutex.
type Option func(cfg *config)

// WithFutex sets the wait/wake implementation.
// By default a process-shared system futex is used.
func WithFutex(f futex.Futex) Option {
	return func(cfg *config) {
		cfg.futex = f
	}
}

// WithClock sets the clock, which is used to compute remaining time before a deadline.
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *config) {
		cfg.clock = clock
	}
}

// WithLogger sets the logger for unexpected futex failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithSpinCount sets the number of extra acquisition attempts before the goroutine sleeps.
func WithSpinCount(count int) Option {
	return func(cfg *config) {
		if count < 0 {
			count = 0
		}
		cfg.spinCount = count
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		futex:  futex.Shared(),
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
