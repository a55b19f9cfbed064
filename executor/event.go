package executor

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

// EventKind tags an Event.
type EventKind int

const (
	// EventOutput is a console line; see Event.Text and Event.Stream.
	EventOutput EventKind = iota
	// EventActiveLine reports the line about to run; see Event.Line.
	EventActiveLine
	// EventEnd marks the end of one execution.
	EventEnd
	// EventError is terminal; see Event.Err.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventActiveLine:
		return "active_line"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Stream identifies the interpreter stream a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Event is one item of execution output.
type Event struct {
	Kind   EventKind
	Text   string
	Stream Stream
	Line   int
	Err    error
}

func outputEvent(stream Stream, text string) Event {
	return Event{Kind: EventOutput, Stream: stream, Text: text}
}

func errorEvent(err error) Event {
	return Event{Kind: EventError, Err: err}
}

// Terminal reports whether no further events follow e in the same run.
func (e Event) Terminal() bool {
	return e.Kind == EventEnd || e.Kind == EventError
}

// Request is one execution: code in a registered language.
type Request struct {
	Language string
	Code     string
}

// Result holds the collected output and metadata from one execution.
type Result struct {
	Output   string
	Events   []Event
	Duration time.Duration
	Error    error
}

// Collect drains events into a Result. Output joins console lines from both
// streams in arrival order, one per line.
func Collect(events iter.Seq[Event]) Result {
	start := time.Now()
	var (
		res Result
		out strings.Builder
	)
	for ev := range events {
		res.Events = append(res.Events, ev)
		switch ev.Kind {
		case EventOutput:
			out.WriteString(ev.Text)
			out.WriteByte('\n')
		case EventError:
			res.Error = ev.Err
		}
	}
	res.Output = out.String()
	res.Duration = time.Since(start)
	return res
}
