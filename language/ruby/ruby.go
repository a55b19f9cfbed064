// Package ruby provides the Ruby language adapter.
package ruby

import "github.com/caffeineduck/replshim/executor"

// driver evaluates stdin in chunks. A chunk ends with the line that prints
// the end marker; an exception inside a chunk is reported on stderr and the
// markers are printed anyway, so the interpreter survives user errors. The
// loop runs in a lambda so its locals stay out of TOPLEVEL_BINDING.
const driver = `$stdout.sync = true
$stderr.sync = true
-> do
  marker = "##end_of_execution##"
  buf = +""
  while (line = $stdin.gets)
    buf << line
    next unless line.include?(marker)
    begin
      TOPLEVEL_BINDING.eval(buf, "(replshim)", 1)
    rescue SystemExit, Interrupt
      raise
    rescue Exception => e
      $stderr.puts e.full_message(highlight: false)
      $stderr.puts marker
      $stdout.puts marker
    end
    buf = +""
  end
end.call`

// Ruby implements executor.Language for Ruby.
type Ruby struct {
	executor.Base
	executable string
}

// Option configures the adapter.
type Option func(*Ruby)

// WithExecutable sets the ruby binary. Default: "ruby" from PATH.
func WithExecutable(path string) Option {
	return func(r *Ruby) {
		if path != "" {
			r.executable = path
		}
	}
}

// New returns a Ruby language adapter.
func New(opts ...Option) *Ruby {
	r := &Ruby{executable: "ruby"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns "ruby".
func (r *Ruby) Name() string {
	return "ruby"
}

func (r *Ruby) Config() executor.Config {
	return executor.Config{
		StartCommand:  []string{r.executable, "-e", driver},
		FileExtension: "rb",
		DisplayName:   "Ruby",
		StderrMarker:  true,
	}
}

// PreprocessCode appends one line printing the end marker on stderr and
// then stdout. The driver splits chunks on that line.
func (r *Ruby) PreprocessCode(code string) string {
	return code + "\n$stderr.puts \"" + executor.EndMarker + "\"; puts \"" + executor.EndMarker + "\""
}

// VersionProbe parses "ruby X.Y.Z ..." from stdout.
func (r *Ruby) VersionProbe() executor.VersionProbe {
	return executor.VersionProbe{
		Command: []string{r.executable, "--version"},
		Source:  executor.ProbeStdout,
		Token:   1,
	}
}
