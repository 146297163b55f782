// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build !linux && !freebsd

package main

// named mutexes need a process-shared futex.
func registerNamedCommands() {}
