package executor

// Language defines the interface for an interpreter adapter.
// Implement this interface to add support for new languages (R, Ruby, etc.).
// Adapters are pure configuration: the executor owns the process and the
// output protocol.
type Language interface {
	// Name returns a unique identifier for this language (e.g., "r", "ruby").
	// Used as the registry and session key.
	Name() string

	// Config returns the static launch configuration.
	Config() Config

	// PreprocessCode prepares user code for execution by appending a command
	// that prints the end-of-execution marker on its own stdout line, and on
	// stderr as well when Config.StderrMarker is set.
	PreprocessCode(code string) string

	// ProcessLine normalizes a raw output line before detection.
	ProcessLine(line string) string

	// DetectActiveLine reports the line number carried by an instrumentation
	// marker, if the line is one.
	DetectActiveLine(line string) (int, bool)

	// DetectEndOfExecution reports whether line carries the end marker.
	// It must be a pure function of line.
	DetectEndOfExecution(line string) bool

	// StripEndOfExecution removes the end marker from line, returning any
	// output that shared the line with it.
	StripEndOfExecution(line string) string

	// VersionProbe describes how to ask the interpreter for its version.
	VersionProbe() VersionProbe
}

// Config is the immutable launch configuration of a language.
type Config struct {
	// StartCommand is the argv of an interpreter that keeps reading stdin.
	StartCommand  []string
	FileExtension string
	DisplayName   string
	// StderrMarker means the trailer prints the end marker on stderr too,
	// after the one on stdout or before it. A run then ends only once both
	// streams reached the marker, so stderr written by the run stays in it.
	StderrMarker bool
}

// ProbeSource selects which stream carries the version banner.
type ProbeSource int

const (
	// ProbeStdout reads the banner from stdout.
	ProbeStdout ProbeSource = iota
	// ProbeStderr reads stderr, falling back to stdout when stderr is empty.
	ProbeStderr
)

// VersionProbe describes a version command and where its answer is.
//
// The version is taken positionally from the whitespace-split banner, which
// breaks when upstream changes the banner format. Callers must tolerate a
// missing version.
type VersionProbe struct {
	Command []string
	Source  ProbeSource
	Token   int
}

// Base provides the default hooks shared by marker-only adapters:
// identity line processing, no active lines and substring marker detection.
// Embed it and override what differs.
type Base struct{}

func (Base) ProcessLine(line string) string { return line }

func (Base) DetectActiveLine(string) (int, bool) { return 0, false }

func (Base) DetectEndOfExecution(line string) bool { return HasEndMarker(line) }

func (Base) StripEndOfExecution(line string) string { return StripEndMarker(line) }
