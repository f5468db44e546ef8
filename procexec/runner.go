package procexec

import (
	"context"
	"errors"
	"fmt"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"io"
	"os"
	"os/exec"
	"sync"
)

type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (stream Stream) String() string {
	if stream == Stderr {
		return "stderr"
	}
	return "stdout"
}

type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

type ChunkFunc func(stream Stream, chunk string)

// Invocation describes one child process run.
type Invocation struct {
	Name    string
	Args    []string
	OnChunk ChunkFunc
	// Omit reports lines that are left out of Result.Tail, e.g. progress lines.
	Omit func(line string) bool
}

type Result struct {
	ExitCode int
	Tail     []string
}

type Runner struct {
	Command CommandFunc
}

func NewRunner() *Runner {
	return &Runner{
		Command: exec.CommandContext,
	}
}

// Run spawns the invocation and blocks until it exits. The exit code is
// returned as is; ErrCancelled is returned instead whenever the guard was
// cancelled or the process died from a signal.
func (runner *Runner) Run(ctx context.Context, guard *Guard, inv Invocation) (*Result, error) {
	if guard.Cancelled() {
		return nil, ErrCancelled
	}

	command := runner.Command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(ctx, inv.Name, inv.Args...)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	log.WithField("args", inv.Args).Debugf("exec %s", inv.Name)

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("could not start %s: %w", inv.Name, err)
	}
	guard.attach(cmd)
	defer guard.detach(cmd)

	// Cancel may have run between the check above and attach.
	if guard.Cancelled() {
		guard.terminate(cmd)
	}

	output := newTail(TailLines, inv.Omit)
	var mu sync.Mutex
	forward := func(stream Stream, chunk string) {
		mu.Lock()
		defer mu.Unlock()
		output.write(stream, chunk)
		if inv.OnChunk != nil {
			inv.OnChunk(stream, chunk)
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		return pump(stdout, Stdout, forward)
	})
	g.Go(func() error {
		return pump(stderr, Stderr, forward)
	})
	readErr := g.Wait()
	waitErr := cmd.Wait()

	output.flush()
	result := &Result{
		ExitCode: -1,
		Tail:     output.snapshot(),
	}
	if cmd.ProcessState == nil {
		return result, waitErr
	}
	result.ExitCode = cmd.ProcessState.ExitCode()

	if guard.Cancelled() || result.ExitCode == -1 {
		return result, ErrCancelled
	}
	if readErr != nil {
		return result, fmt.Errorf("could not read %s output: %w", inv.Name, readErr)
	}

	return result, nil
}

func pump(r io.Reader, stream Stream, forward ChunkFunc) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			forward(stream, string(buf[:n]))
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
