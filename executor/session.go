package executor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session owns at most one live interpreter per language. Runs on the same
// language are serialized; different languages run independently.
type Session struct {
	id       string
	registry *Registry
	cfg      sessionConfig
	logger   *slog.Logger

	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
}

type slot struct {
	sup   *Supervisor
	runMu sync.Mutex
}

// NewSession creates a session routing requests through registry.
// Interpreters are started lazily by the first run of each language.
func NewSession(registry *Registry, opts ...SessionOption) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if registry == nil {
		registry = NewRegistry()
	}

	id := uuid.NewString()
	s := &Session{
		id:       id,
		registry: registry,
		cfg:      cfg,
		slots:    make(map[string]*slot),
	}
	s.cfg.logger = cfg.logger.With("session", id)
	s.logger = s.cfg.logger
	return s
}

// ID returns the session identifier used in log records.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) slot(language string) (*slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if sl, ok := s.slots[language]; ok {
		return sl, nil
	}
	lang, ok := s.registry.Get(language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
	sl := &slot{sup: newSupervisor(lang, &s.cfg)}
	s.slots[language] = sl
	return sl, nil
}

// Stream executes req and yields its output as it arrives. The sequence
// ends with exactly one EventEnd or EventError.
//
// If the consumer stops early or ctx ends before the end marker, the
// interpreter is terminated, since its output can no longer be attributed
// to a run. The next run starts a fresh one.
func (s *Session) Stream(ctx context.Context, req Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		sl, err := s.slot(req.Language)
		if err != nil {
			yield(errorEvent(err))
			return
		}

		sl.runMu.Lock()
		defer sl.runMu.Unlock()

		if s.isClosed() {
			yield(errorEvent(ErrSessionClosed))
			return
		}

		if s.cfg.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.timeout)
			defer cancel()
		}

		s.run(ctx, sl, req.Code, yield)
	}
}

func (s *Session) run(ctx context.Context, sl *slot, code string, yield func(Event) bool) {
	lang := sl.sup.Language()
	logger := s.logger.With("run", uuid.NewString(), "language", lang.Name())
	start := time.Now()

	proc, err := sl.sup.EnsureStarted(ctx)
	if err != nil {
		yield(errorEvent(err))
		return
	}

	code = lang.PreprocessCode(code)
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}

	// Written concurrently with draining so large inputs cannot deadlock
	// against an interpreter blocked on full output pipes.
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- sl.sup.Write(proc, code)
	}()

	finished := false
	for ev := range NewRelay(proc, lang).Events(ctx) {
		if ev.Kind == EventError {
			ev = errorEvent(s.joinWriteError(writeDone, ev.Err))
			logger.Warn("run failed", "pid", proc.PID(), "error", ev.Err)
		}
		if ev.Terminal() {
			finished = ev.Kind == EventEnd
			yield(ev)
			break
		}
		if !yield(ev) {
			logger.Debug("consumer stopped before end of execution", "pid", proc.PID())
			break
		}
	}

	if !finished {
		_ = sl.sup.Terminate()
		<-writeDone
		return
	}

	select {
	case <-writeDone:
	case <-time.After(s.cfg.terminateTimeout):
		// End marker arrived before the interpreter consumed all input.
		logger.Warn("interpreter stopped reading input, terminating", "pid", proc.PID())
		_ = sl.sup.Terminate()
		<-writeDone
	}
	logger.Debug("run finished", "pid", proc.PID(), "duration", time.Since(start))
}

func (s *Session) joinWriteError(writeDone chan error, err error) error {
	select {
	case werr := <-writeDone:
		// Put it back for the final wait in run.
		writeDone <- werr
		if werr != nil {
			return errors.Join(werr, err)
		}
	default:
	}
	return err
}

// Run executes req and collects its output.
func (s *Session) Run(ctx context.Context, req Request) Result {
	return Collect(s.Stream(ctx, req))
}

// PID returns the process id of the live interpreter for language.
func (s *Session) PID(language string) (int, bool) {
	s.mu.Lock()
	sl, ok := s.slots[language]
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	proc := sl.sup.Process()
	if proc == nil || !proc.Alive() {
		return 0, false
	}
	return proc.PID(), true
}

// Terminate stops the interpreter for language, if any. It is safe to call
// repeatedly; the next run starts a new interpreter.
func (s *Session) Terminate(language string) error {
	s.mu.Lock()
	sl, ok := s.slots[language]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return sl.sup.Terminate()
}

// CheckInstalled reports whether the interpreter for language answers its
// version command. Unknown languages and probe failures report false.
func (s *Session) CheckInstalled(ctx context.Context, language string) bool {
	sl, err := s.slot(language)
	if err != nil {
		return false
	}
	return sl.sup.CheckInstalled(ctx)
}

// InstalledVersion returns the interpreter version for language, if it can
// be determined.
func (s *Session) InstalledVersion(ctx context.Context, language string) (string, bool) {
	sl, err := s.slot(language)
	if err != nil {
		return "", false
	}
	return sl.sup.InstalledVersion(ctx)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close terminates every interpreter. Later runs fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	slots := make([]*slot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sl := range slots {
		wg.Add(1)
		go func(sup *Supervisor) {
			defer wg.Done()
			_ = sup.Terminate()
		}(sl.sup)
	}
	wg.Wait()
	return nil
}
