// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package testutil runs helper processes for cross-process tests.
package testutil

import (
	"bytes"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// HelperEnv is the environment variable, which holds the name of the helper,
// that a test binary must run instead of its tests.
const HelperEnv = "GO_MTX_TEST_HELPER"

// AppResult is a result of a helper process launch.
type AppResult struct {
	Output string
	Err    error
}

// RunHelper starts the current test binary as a helper process and returns immediately.
// The helper named 'name' is selected via HelperEnv, env is appended to the environment.
// To wait for the process to finish, receive on the returned chan.
func RunHelper(name string, env ...string) <-chan AppResult {
	ch := make(chan AppResult, 1)
	cmd, buff, err := startHelper(name, env)
	if err != nil {
		ch <- AppResult{Err: err}
		return ch
	}
	go func() {
		ch <- waitForCommand(cmd, buff)
	}()
	return ch
}

func startHelper(name string, env []string) (*exec.Cmd, *bytes.Buffer, error) {
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(append(os.Environ(), HelperEnv+"="+name), env...)
	buff := bytes.NewBuffer(nil)
	cmd.Stderr = buff
	cmd.Stdout = buff
	if err := cmd.Start(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to start helper")
	}
	return cmd, buff, nil
}

func waitForCommand(cmd *exec.Cmd, buff *bytes.Buffer) (result AppResult) {
	if err := cmd.Wait(); err != nil {
		result.Err = err
		if exiterr, ok := err.(*exec.ExitError); ok {
			if status, ok := exiterr.Sys().(syscall.WaitStatus); ok {
				result.Err = errors.Wrapf(err, "status code = %d", status.ExitStatus())
			}
		}
	}
	result.Output = buff.String()
	return
}

// WaitForFunc calls f asynchronously leaving it some time to finish.
// It returns true, if f completed.
func WaitForFunc(f func(), d time.Duration) bool {
	ch := make(chan struct{})
	go func() {
		f()
		close(ch)
	}()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

// WaitForAppResultChan waits for a value from ch with a timeout.
func WaitForAppResultChan(ch <-chan AppResult, d time.Duration) (AppResult, bool) {
	select {
	case value := <-ch:
		return value, true
	case <-time.After(d):
		return AppResult{}, false
	}
}
