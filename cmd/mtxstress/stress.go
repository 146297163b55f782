// Copyright 2016 Aleksandr Demakin. All rights reserved.

package main

import (
	"context"
	"flag"
	"time"
	"unsafe"

	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nxgtw/go-mtx/futex"
	mtx "github.com/nxgtw/go-mtx/sync"
)

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	goroutines int
	iterations int
	spin       int
	timeout    time.Duration
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "increment a shared counter from many goroutines under one mutex"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return "stress [flags]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.goroutines, "goroutines", 8, "number of competing goroutines")
	f.IntVar(&s.iterations, "iterations", 100000, "number of increments per goroutine")
	f.IntVar(&s.spin, "spin", 0, "number of extra acquisition attempts before sleeping")
	f.DurationVar(&s.timeout, "timeout", 0, "if set, every acquisition uses LockTimeout with this value")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := loggerFrom(args)
	if f.NArg() != 0 || s.goroutines <= 0 || s.iterations < 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	var word uint32
	m := mtx.NewInplaceMutex(unsafe.Pointer(&word),
		mtx.WithFutex(futex.Private()),
		mtx.WithSpinCount(s.spin),
		mtx.WithLogger(log))

	start := time.Now()
	counter, err := s.run(ctx, m)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Msg("stress failed")
		return subcommands.ExitFailure
	}
	expected := uint64(s.goroutines) * uint64(s.iterations)
	if counter != expected {
		log.Error().Uint64("counter", counter).Uint64("expected", expected).Msg("mutual exclusion violated")
		return subcommands.ExitFailure
	}
	log.Info().
		Uint64("counter", counter).
		Dur("elapsed", elapsed).
		Uint32("state", m.State()).
		Msg("stress passed")
	return subcommands.ExitSuccess
}

func (s *Stress) run(ctx context.Context, lk mtx.TimedLocker) (uint64, error) {
	var counter uint64
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < s.iterations; j++ {
				if j%1024 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				if s.timeout > 0 {
					if !lk.LockTimeout(s.timeout) {
						return errors.Errorf("failed to lock within %v", s.timeout)
					}
				} else {
					lk.Lock()
				}
				counter++
				lk.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return counter, nil
}
