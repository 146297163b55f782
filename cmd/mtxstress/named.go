// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux || freebsd

package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/subcommands"

	mtx "github.com/nxgtw/go-mtx/sync"
)

func registerNamedCommands() {
	subcommands.Register(new(Hold), "named")
	subcommands.Register(new(Probe), "named")
	subcommands.Register(new(Destroy), "named")
}

// Hold implements subcommands.Command for the "hold" command.
type Hold struct {
	name string
	dur  time.Duration
}

// Name implements subcommands.Command.Name.
func (*Hold) Name() string {
	return "hold"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Hold) Synopsis() string {
	return "lock a named mutex and keep it locked for a while"
}

// Usage implements subcommands.Command.Usage.
func (*Hold) Usage() string {
	return "hold -name <name> [-for <duration>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (h *Hold) SetFlags(f *flag.FlagSet) {
	f.StringVar(&h.name, "name", "", "mutex name")
	f.DurationVar(&h.dur, "for", 10*time.Second, "how long to hold the mutex")
}

// Execute implements subcommands.Command.Execute.
func (h *Hold) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := loggerFrom(args)
	if h.name == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	m, err := mtx.NewFutexMutex(h.name, os.O_CREATE, 0666, mtx.WithLogger(log))
	if err != nil {
		log.Error().Err(err).Str("name", h.name).Msg("failed to open mutex")
		return subcommands.ExitFailure
	}
	defer m.Close()

	m.Lock()
	log.Info().Str("name", h.name).Dur("for", h.dur).Msg("mutex locked")
	select {
	case <-time.After(h.dur):
	case <-ctx.Done():
	}
	m.Unlock()
	log.Info().Str("name", h.name).Msg("mutex unlocked")
	return subcommands.ExitSuccess
}

// Probe implements subcommands.Command for the "probe" command.
type Probe struct {
	name    string
	timeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "try to lock an existing named mutex within a timeout"
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return "probe -name <name> [-timeout <duration>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *Probe) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.name, "name", "", "mutex name")
	f.DurationVar(&p.timeout, "timeout", time.Second, "how long to wait for the mutex")
}

// Execute implements subcommands.Command.Execute. It exits with a failure status,
// if the mutex could not be acquired in time.
func (p *Probe) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := loggerFrom(args)
	if p.name == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	m, err := mtx.NewFutexMutex(p.name, 0, 0, mtx.WithLogger(log))
	if err != nil {
		log.Error().Err(err).Str("name", p.name).Msg("failed to open mutex")
		return subcommands.ExitFailure
	}
	defer m.Close()

	start := time.Now()
	if !m.LockTimeout(p.timeout) {
		log.Info().Str("name", p.name).Uint32("state", m.State()).Msg("timed out")
		return subcommands.ExitFailure
	}
	m.Unlock()
	log.Info().Str("name", p.name).Dur("waited", time.Since(start)).Msg("acquired")
	return subcommands.ExitSuccess
}

// Destroy implements subcommands.Command for the "destroy" command.
type Destroy struct {
	name string
}

// Name implements subcommands.Command.Name.
func (*Destroy) Name() string {
	return "destroy"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Destroy) Synopsis() string {
	return "remove a named mutex"
}

// Usage implements subcommands.Command.Usage.
func (*Destroy) Usage() string {
	return "destroy -name <name>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Destroy) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.name, "name", "", "mutex name")
}

// Execute implements subcommands.Command.Execute.
func (d *Destroy) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log := loggerFrom(args)
	if d.name == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := mtx.DestroyFutexMutex(d.name); err != nil {
		log.Error().Err(err).Str("name", d.name).Msg("failed to destroy mutex")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
