package procexec

import (
	"errors"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
	"os/exec"
	"sync/atomic"
	"time"
)

var ErrCancelled = errors.New("cancelled")

// Guard carries the cancellation state of one run together with the child
// process currently executing on its behalf.
type Guard struct {
	cancelled atomic.Bool
	done      chan struct{}
	active    atomic.Pointer[exec.Cmd]
	killGrace time.Duration
}

// NewGuard returns a guard that escalates to SIGKILL when a terminated
// process is still alive after killGrace. A zero killGrace disables escalation.
func NewGuard(killGrace time.Duration) *Guard {
	return &Guard{
		done:      make(chan struct{}),
		killGrace: killGrace,
	}
}

func (guard *Guard) Cancelled() bool {
	return guard.cancelled.Load()
}

// Done is closed once the guard is cancelled.
func (guard *Guard) Done() <-chan struct{} {
	return guard.done
}

// Cancel marks the run as cancelled and terminates the active process, if any.
// It returns false when the guard was already cancelled.
func (guard *Guard) Cancel() bool {
	if guard.cancelled.Swap(true) {
		return false
	}
	close(guard.done)
	cmd := guard.active.Load()
	if cmd != nil {
		guard.terminate(cmd)
	}
	return true
}

// Active reports the pid of the running child process, or 0.
func (guard *Guard) Active() int {
	cmd := guard.active.Load()
	if cmd == nil || cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}

func (guard *Guard) attach(cmd *exec.Cmd) {
	guard.active.Store(cmd)
}

func (guard *Guard) detach(cmd *exec.Cmd) {
	guard.active.CompareAndSwap(cmd, nil)
}

func (guard *Guard) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := int32(cmd.Process.Pid)
	err := signalTree(pid, false)
	if err != nil {
		log.WithField("pid", pid).Debugf("terminate: %v", err)
		_ = cmd.Process.Kill()
		return
	}
	if guard.killGrace <= 0 {
		return
	}
	time.AfterFunc(guard.killGrace, func() {
		if guard.active.Load() != cmd {
			return
		}
		log.WithField("pid", pid).Warn("process still running after termination signal, killing")
		err := signalTree(pid, true)
		if err != nil {
			_ = cmd.Process.Kill()
		}
	})
}

// signalTree signals the children of pid before pid itself so that tools
// spawning helpers (7z codecs, adb server forks) do not leave orphans behind.
func signalTree(pid int32, kill bool) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	children, _ := p.Children()
	for _, child := range children {
		_ = signalTree(child.Pid, kill)
	}
	if kill {
		return p.Kill()
	}
	return p.Terminate()
}
