package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// lineBuffer bounds how far the readers run ahead of the consumer.
const lineBuffer = 256

type rawLine struct {
	stream Stream
	text   string
}

// Process is one running interpreter. Both output streams are read for the
// whole life of the process and merged into a single line channel, so
// successive executions can drain it in turn.
type Process struct {
	language string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	lines    chan rawLine
	logger   *slog.Logger

	quit    chan struct{}
	done    chan struct{}
	exitErr error

	writeMu  sync.Mutex
	stopOnce sync.Once
}

func startProcess(language string, argv []string, cfg *sessionConfig) (*Process, error) {
	if len(argv) == 0 {
		return nil, &SpawnError{Language: language, Err: errors.New("empty start command")}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cfg.dir
	if len(cfg.env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Language: language, Argv: argv, Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Language: language, Argv: argv, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Language: language, Argv: argv, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Language: language, Argv: argv, Err: err}
	}

	p := &Process{
		language: language,
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		lines:    make(chan rawLine, lineBuffer),
		logger:   cfg.logger,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	var readers errgroup.Group
	readers.Go(func() error { return p.read(Stdout, stdout) })
	readers.Go(func() error { return p.read(Stderr, stderr) })

	// Wait must not run before the readers are finished with the pipes.
	go func() {
		if err := readers.Wait(); err != nil {
			p.logger.Debug("interpreter stream closed", "language", language, "pid", p.PID(), "error", err)
		}
		close(p.lines)
		p.exitErr = cmd.Wait()
		close(p.done)
		p.logger.Debug("interpreter exited", "language", language, "pid", p.PID(), "status", exitStatus(p.exitErr))
	}()

	return p, nil
}

func (p *Process) read(stream Stream, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			select {
			case p.lines <- rawLine{stream: stream, text: line}:
			case <-p.quit:
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read %s: %w", stream, err)
		}
	}
}

// waitStarted holds the process for the spawn grace window. An exit inside
// the window means the interpreter could not run.
func (p *Process) waitStarted(ctx context.Context, grace time.Duration) error {
	if grace <= 0 {
		return nil
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	var early []string
	for l := range p.lines {
		if l.stream == Stderr {
			early = append(early, l.text)
		}
	}
	err := p.exitErr
	if err == nil {
		err = errors.New("exited immediately")
	}
	return &SpawnError{
		Language: p.language,
		Argv:     p.cmd.Args,
		Stderr:   strings.TrimSpace(strings.Join(early, "\n")),
		Err:      err,
	}
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Alive reports whether the process is still running. It never blocks.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed once the process has exited and its streams are drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitErr returns the result of waiting on the process. Only meaningful
// after Done is closed.
func (p *Process) ExitErr() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

func (p *Process) write(text string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if !p.Alive() {
		return fmt.Errorf("%w: process %d has exited", ErrWrite, p.PID())
	}
	// stdin is an unbuffered pipe, every write reaches the interpreter as is.
	if _, err := io.WriteString(p.stdin, text); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// exitError describes a process whose streams ended without an end marker.
func (p *Process) exitError() error {
	select {
	case <-p.done:
	case <-time.After(100 * time.Millisecond):
		return fmt.Errorf("%w: output streams closed", ErrProcessExited)
	}
	return fmt.Errorf("%w: %s", ErrProcessExited, exitStatus(p.exitErr))
}

// terminate stops the process: stdin is closed, the process group gets
// SIGTERM and, after timeout, SIGKILL. Calling it again is a no-op.
func (p *Process) terminate(timeout time.Duration) {
	p.stopOnce.Do(func() {
		close(p.quit)
		_ = p.stdin.Close()

		if p.Alive() {
			if err := terminateProcess(p.cmd); err != nil {
				p.logger.Debug("terminate signal failed", "language", p.language, "pid", p.PID(), "error", err)
			}
			timer := time.NewTimer(timeout)
			select {
			case <-p.done:
			case <-timer.C:
				p.logger.Warn("interpreter ignored terminate, killing", "language", p.language, "pid", p.PID())
				_ = killProcess(p.cmd)
			}
			timer.Stop()
		}

		// Unblocks readers held by descendants that kept the pipes open.
		_ = p.stdout.Close()
		_ = p.stderr.Close()
	})
	<-p.done
}

func exitStatus(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
