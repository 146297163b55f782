// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package sync implements a minimal non-recursive mutex on top of a futex.
//
// The mutex state is a single 32-bit word with three values:
//	0 - unlocked
//	1 - locked, no waiters
//	2 - locked, some goroutines may sleep in the kernel waiting for the word
// Uncontended Lock, TryLock and Unlock are single atomic operations and never
// enter the kernel. Only the contended path calls futex wait and wake.
// The design follows 'Futexes Are Tricky' by Ulrich Drepper.
//
// The zero value of Mutex is an unlocked mutex, so it can be declared
// as a global or embedded without a constructor call.
//
// The package is named sync on purpose: static lock analyzers, like gVisor's checklocks,
// treat Lock and Unlock methods of types from a package with this name as acquire and release
// operations, so fields may be annotated with '// +checklocks:mu'.
package sync
