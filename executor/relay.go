package executor

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// stderrMarkerWait bounds how long a run waits for the stderr end marker
// once stdout has reached its own.
const stderrMarkerWait = 500 * time.Millisecond

// Relay turns the merged output lines of a process into events for one
// execution at a time.
//
// Lines from one stream keep their order. Interleaving between stdout and
// stderr is best-effort. For languages whose trailer marks both streams, a
// run ends only after both markers arrived, so no stderr line of the run
// is left for the next one.
type Relay struct {
	proc *Process
	lang Language
}

// NewRelay returns a relay reading proc with lang's line hooks.
func NewRelay(proc *Process, lang Language) *Relay {
	return &Relay{proc: proc, lang: lang}
}

// runState tracks which streams reached the end marker in one execution.
type runState struct {
	needStderr bool
	stdoutDone bool
	stderrDone bool
	// grace fires when stdout ended but stderr has not.
	grace <-chan time.Time
}

func (s *runState) finished() bool {
	return s.stdoutDone && (!s.needStderr || s.stderrDone)
}

// Events yields the output of the current execution. The sequence ends after
// an EventEnd or an EventError; it may be called again for the next
// execution on the same process.
func (r *Relay) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		state := &runState{needStderr: r.lang.Config().StderrMarker}
		for {
			select {
			case <-ctx.Done():
				yield(errorEvent(fmt.Errorf("run interrupted: %w", ctx.Err())))
				return
			case <-state.grace:
				yield(Event{Kind: EventEnd})
				return
			case raw, ok := <-r.proc.lines:
				if !ok {
					if state.stdoutDone {
						yield(Event{Kind: EventEnd})
						return
					}
					yield(errorEvent(r.proc.exitError()))
					return
				}
				if !r.emit(raw, state, yield) {
					return
				}
			}
		}
	}
}

// emit translates one raw line. It returns false once the execution is over
// or the consumer stopped.
func (r *Relay) emit(raw rawLine, state *runState, yield func(Event) bool) bool {
	line := r.lang.ProcessLine(raw.text)

	if raw.stream == Stderr {
		if !state.needStderr || state.stderrDone || !r.lang.DetectEndOfExecution(line) {
			return yield(outputEvent(Stderr, line))
		}
		if rest := r.lang.StripEndOfExecution(line); rest != "" {
			if !yield(outputEvent(Stderr, rest)) {
				return false
			}
		}
		state.stderrDone = true
		return r.endIfFinished(state, yield)
	}

	if !state.stdoutDone && r.lang.DetectEndOfExecution(line) {
		if rest := r.lang.StripEndOfExecution(line); rest != "" {
			if !yield(outputEvent(Stdout, rest)) {
				return false
			}
		}
		state.stdoutDone = true
		if !state.finished() {
			state.grace = time.After(stderrMarkerWait)
		}
		return r.endIfFinished(state, yield)
	}

	if n, ok := r.lang.DetectActiveLine(line); ok {
		return yield(Event{Kind: EventActiveLine, Line: n})
	}
	return yield(outputEvent(Stdout, line))
}

func (r *Relay) endIfFinished(state *runState, yield func(Event) bool) bool {
	if !state.finished() {
		return true
	}
	yield(Event{Kind: EventEnd})
	return false
}
