// Package sandbox executes validated subprocess argv lists on behalf of
// the run_terminal_cmd/bash tool, in terminal, pty, or streaming mode,
// always rooted at a working directory and bounded by a timeout.
package sandbox

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

// Mode selects how output is captured.
type Mode string

const (
	ModeTerminal  Mode = "terminal"
	ModePty       Mode = "pty"
	ModeStreaming Mode = "streaming"
)

// DefaultTimeout is used when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures one subprocess invocation.
type Options struct {
	WorkDir string
	Env     map[string]string
	Timeout time.Duration
	Mode    Mode
	// Sink receives output chunks as they arrive when Mode == ModeStreaming.
	// Ignored for other modes.
	Sink func(chunk []byte)
}

// Result mirrors the run_terminal_cmd/bash return shape from §4.4.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Mode     Mode
	UsedShell bool
}

// Executor runs argv lists; it holds no default options of its own.
type Executor struct{}

// New constructs an Executor. It is stateless; Options are supplied per call.
func New() *Executor { return &Executor{} }

// Run dispatches to the mode-specific executor, defaulting to ModeTerminal.
func (e *Executor) Run(ctx context.Context, argv []string, opts Options) (*Result, error) {
	if len(argv) == 0 {
		return nil, vterrors.New(vterrors.KindInvalidParameters, "argv must not be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch opts.Mode {
	case ModePty:
		return e.runPTY(ctx, argv, opts)
	case ModeStreaming:
		return e.runStreaming(ctx, argv, opts)
	default:
		return e.runTerminal(ctx, argv, opts)
	}
}

func buildCmd(ctx context.Context, argv []string, opts Options) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	if len(opts.Env) > 0 {
		env := cmd.Env
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	setSysProcAttr(cmd)
	return cmd
}

func (e *Executor) runTerminal(ctx context.Context, argv []string, opts Options) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := buildCmd(ctx, argv, opts)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, vterrors.New(vterrors.KindTimeout, "command exceeded timeout")
	}
	return finishResult(ModeTerminal, false, stdout.String(), stderr.String(), err)
}

func (e *Executor) runStreaming(ctx context.Context, argv []string, opts Options) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := buildCmd(ctx, argv, opts)
	var stdoutBuf, stderrBuf bytes.Buffer
	sink := opts.Sink
	if sink == nil {
		sink = func([]byte) {}
	}
	cmd.Stdout = io.MultiWriter(&stdoutBuf, sinkWriter(sink))
	cmd.Stderr = io.MultiWriter(&stderrBuf, sinkWriter(sink))

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, vterrors.New(vterrors.KindTimeout, "command exceeded timeout")
	}
	return finishResult(ModeStreaming, false, stdoutBuf.String(), stderrBuf.String(), err)
}

type sinkWriter func([]byte)

func (s sinkWriter) Write(p []byte) (int, error) {
	s(p)
	return len(p), nil
}

func (e *Executor) runPTY(ctx context.Context, argv []string, opts Options) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := buildCmd(ctx, argv, opts)
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, vterrors.Wrap(vterrors.KindInternal, "allocate pseudo-terminal", err)
	}
	defer f.Close()

	var combined bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&combined, f)
		close(done)
	}()

	waitErr := cmd.Wait()
	<-done

	if ctx.Err() == context.DeadlineExceeded {
		return nil, vterrors.New(vterrors.KindTimeout, "command exceeded timeout")
	}
	return finishResult(ModePty, false, combined.String(), "", waitErr)
}

func finishResult(mode Mode, usedShell bool, stdout, stderr string, err error) (*Result, error) {
	exitCode := 0
	success := err == nil
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, vterrors.Wrap(vterrors.KindInternal, "spawn command", err)
		}
	}
	return &Result{
		Success:   success,
		ExitCode:  exitCode,
		Stdout:    strings.TrimRight(stdout, "\n"),
		Stderr:    strings.TrimRight(stderr, "\n"),
		Mode:      mode,
		UsedShell: usedShell,
	}, nil
}
