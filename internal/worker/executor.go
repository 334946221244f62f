package worker

import (
	"context"
	"io"
	"os/exec"
	"time"
)

// Command describes a single child process launch.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	// WaitDelay bounds how long Run waits for output pipes after the child
	// has been killed or has exited.
	WaitDelay time.Duration
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

type commandExecutor struct{}

// Run starts the command in its own process group. When ctx is done the
// whole group is killed, so helpers spawned by the worker do not outlive it.
func (commandExecutor) Run(ctx context.Context, spec Command) error {
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	configureProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = spec.WaitDelay
	return cmd.Run()
}
