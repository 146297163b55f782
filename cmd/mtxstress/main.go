// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Binary mtxstress exercises go-mtx mutexes from the command line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

var verbose = flag.Bool("v", false, "enable debug logging")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(new(Stress), "")
	registerNamedCommands()

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := subcommands.Execute(ctx, newLogger(*verbose))
	stop()
	os.Exit(int(status))
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// loggerFrom extracts the logger passed to subcommands.Execute.
func loggerFrom(args []interface{}) zerolog.Logger {
	if len(args) > 0 {
		if l, ok := args[0].(zerolog.Logger); ok {
			return l
		}
	}
	return zerolog.Nop()
}
