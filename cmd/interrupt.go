package cmd

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

type canceller interface {
	Cancel() bool
}

// interruptWatcher cancels the running installation on every signal and
// remembers signals that arrived before an installation was started.
type interruptWatcher struct {
	interrupted atomic.Bool
	controller  canceller
	out         io.Writer
}

func watchInterrupts(signals <-chan os.Signal, controller canceller, out io.Writer) *interruptWatcher {
	watcher := &interruptWatcher{
		controller: controller,
		out:        out,
	}
	go func() {
		for range signals {
			watcher.interrupted.Store(true)
			if controller.Cancel() {
				_, _ = fmt.Fprintln(out, "cancelling...")
			}
		}
	}()
	return watcher
}

// started cancels the installation just started if a signal came first.
func (watcher *interruptWatcher) started() {
	if watcher.interrupted.Load() {
		watcher.controller.Cancel()
	}
}
