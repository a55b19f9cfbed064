package executor

import (
	"context"
	"sync"
)

// Supervisor owns at most one interpreter process for a language. It starts
// the process on demand, replaces it after it dies and stops it on request.
// No other component writes to the process or closes its streams.
type Supervisor struct {
	lang Language
	cfg  *sessionConfig

	mu   sync.Mutex
	proc *Process
}

// NewSupervisor returns a supervisor for lang. No process is started until
// EnsureStarted.
func NewSupervisor(lang Language, opts ...SessionOption) *Supervisor {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newSupervisor(lang, &cfg)
}

func newSupervisor(lang Language, cfg *sessionConfig) *Supervisor {
	return &Supervisor{lang: lang, cfg: cfg}
}

// Language returns the supervised language.
func (s *Supervisor) Language() Language {
	return s.lang
}

// EnsureStarted returns the live process, spawning a new one if there is
// none or the previous one died. Spawn failures wrap ErrSpawn.
func (s *Supervisor) EnsureStarted(ctx context.Context) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		if s.proc.Alive() {
			return s.proc, nil
		}
		s.cfg.logger.Info("interpreter died, respawning",
			"language", s.lang.Name(), "pid", s.proc.PID(), "status", exitStatus(s.proc.ExitErr()))
		s.proc.terminate(s.cfg.terminateTimeout)
		s.proc = nil
	}

	argv := s.lang.Config().StartCommand
	proc, err := startProcess(s.lang.Name(), argv, s.cfg)
	if err != nil {
		s.cfg.logger.Warn("interpreter spawn failed", "language", s.lang.Name(), "error", err)
		return nil, err
	}
	if err := proc.waitStarted(ctx, s.cfg.spawnGrace); err != nil {
		proc.terminate(s.cfg.terminateTimeout)
		s.cfg.logger.Warn("interpreter spawn failed", "language", s.lang.Name(), "error", err)
		return nil, err
	}

	s.cfg.logger.Info("interpreter started", "language", s.lang.Name(), "pid", proc.PID(), "argv", argv)
	s.proc = proc
	return proc, nil
}

// Write sends text to the interpreter's stdin. A failed write means the
// process is gone; it is stopped so the next EnsureStarted spawns afresh.
func (s *Supervisor) Write(proc *Process, text string) error {
	if err := proc.write(text); err != nil {
		s.cfg.logger.Warn("interpreter write failed", "language", s.lang.Name(), "pid", proc.PID(), "error", err)
		proc.terminate(s.cfg.terminateTimeout)
		return err
	}
	return nil
}

// Alive reports whether a supervised process is running. It never blocks on
// the process.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && s.proc.Alive()
}

// Process returns the current process, which may be nil or dead.
func (s *Supervisor) Process() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc
}

// Terminate stops the supervised process: SIGTERM, a bounded wait, then
// SIGKILL. Terminating a dead or absent process is a no-op.
func (s *Supervisor) Terminate() error {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()

	if proc == nil {
		return nil
	}
	wasAlive := proc.Alive()
	proc.terminate(s.cfg.terminateTimeout)
	if wasAlive {
		s.cfg.logger.Info("interpreter terminated", "language", s.lang.Name(), "pid", proc.PID())
	}
	return nil
}

// CheckInstalled runs the version command and reports whether it exits
// cleanly within the probe timeout. Failures never propagate.
func (s *Supervisor) CheckInstalled(ctx context.Context) bool {
	_, _, err := runProbe(ctx, s.lang.VersionProbe(), s.cfg.probeTimeout)
	if err != nil {
		s.logProbeFailure(err)
		return false
	}
	return true
}

// InstalledVersion returns the interpreter version parsed from the version
// banner. Any failure yields ("", false).
func (s *Supervisor) InstalledVersion(ctx context.Context) (string, bool) {
	version, err := probeVersion(ctx, s.lang.VersionProbe(), s.cfg.probeTimeout)
	if err != nil {
		s.logProbeFailure(err)
		return "", false
	}
	return version, true
}

func (s *Supervisor) logProbeFailure(err error) {
	if isNotInstalled(err) {
		s.cfg.logger.Debug("interpreter not installed", "language", s.lang.Name(), "error", err)
		return
	}
	s.cfg.logger.Debug("version probe failed", "language", s.lang.Name(), "error", err)
}
