// Package panics provides goroutine-wrapping and process-exit helpers that
// recover a panic, log it through a dagchaind logs.Logger, and terminate
// cleanly instead of letting the runtime print a bare crash. Grounded on
// the teacher's util/panics/panics.go, adapted from a *logs.Logger struct
// pointer (the teacher's logs package exposes a concrete Logger type) to
// this repo's logs.Logger interface value, and dropping the
// Backend().Close() call the teacher's Logger carried but ours does not
// expose (this repo's logs.Backend has no Close method, and
// logger.LogRotator/ErrLogRotator are not closed before the process exits).
package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/dagchaind/dagchaind/logs"
)

// HandlePanic recovers a panic, logs it (with the calling goroutine's
// stack trace, if supplied) and exits the process.
func HandlePanic(log logs.Logger, goroutineStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	panicHandlerDone := make(chan struct{})
	go func() {
		log.Criticalf("Fatal error: %+v", err)
		if goroutineStackTrace != nil {
			log.Criticalf("Goroutine stack trace: %s", goroutineStackTrace)
		}
		log.Criticalf("Stack trace: %s", debug.Stack())
		close(panicHandlerDone)
	}()

	const panicHandlerTimeout = 5 * time.Second
	select {
	case <-time.After(panicHandlerTimeout):
		fmt.Fprintln(os.Stderr, "Couldn't handle a fatal error. Exiting...")
	case <-panicHandlerDone:
	}
	log.Criticalf("Exiting")
	os.Exit(1)
}

// GoroutineWrapperFunc returns a goroutine wrapper that recovers and logs
// any panic from the function it runs, instead of crashing the process.
func GoroutineWrapperFunc(log logs.Logger) func(func()) {
	return func(f func()) {
		stackTrace := debug.Stack()
		go func() {
			defer HandlePanic(log, stackTrace)
			f()
		}()
	}
}

// AfterFuncWrapperFunc is time.AfterFunc with the same panic recovery as
// GoroutineWrapperFunc.
func AfterFuncWrapperFunc(log logs.Logger) func(d time.Duration, f func()) *time.Timer {
	return func(d time.Duration, f func()) *time.Timer {
		stackTrace := debug.Stack()
		return time.AfterFunc(d, func() {
			defer HandlePanic(log, stackTrace)
			f()
		})
	}
}

// Exit logs reason as the cause of a clean shutdown and exits the process.
func Exit(log logs.Logger, reason string) {
	exitHandlerDone := make(chan struct{})
	go func() {
		log.Criticalf("Exiting: %s", reason)
		close(exitHandlerDone)
	}()

	const exitHandlerTimeout = 5 * time.Second
	select {
	case <-time.After(exitHandlerTimeout):
		fmt.Fprintln(os.Stderr, "Couldn't exit gracefully.")
	case <-exitHandlerDone:
	}
	os.Exit(1)
}
