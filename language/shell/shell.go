// Package shell provides a POSIX shell language adapter. Unlike the R and
// Ruby adapters it reports active lines: each simple line of the submitted
// code is preceded by an echo of its line number.
package shell

import (
	"strings"

	"github.com/caffeineduck/replshim/executor"
)

// Shell implements executor.Language for sh-compatible shells.
type Shell struct {
	executor.Base
	executable string
}

// Option configures the adapter.
type Option func(*Shell)

// WithExecutable sets the shell binary. Default: "sh" from PATH.
func WithExecutable(path string) Option {
	return func(s *Shell) {
		if path != "" {
			s.executable = path
		}
	}
}

// New returns a shell language adapter.
func New(opts ...Option) *Shell {
	s := &Shell{executable: "sh"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns "shell".
func (s *Shell) Name() string {
	return "shell"
}

// Config starts the shell with no script so it executes stdin line by line.
func (s *Shell) Config() executor.Config {
	return executor.Config{
		StartCommand:  []string{s.executable},
		FileExtension: "sh",
		DisplayName:   "Shell",
		StderrMarker:  true,
	}
}

// PreprocessCode instruments traceable code with active line markers and
// appends commands printing the end marker on stderr and then stdout.
func (s *Shell) PreprocessCode(code string) string {
	var b strings.Builder
	if traceable(code) {
		for i, line := range strings.Split(code, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
				b.WriteString("echo '" + executor.ActiveLineMarker(i+1) + "'\n")
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	} else {
		b.WriteString(code)
		b.WriteByte('\n')
	}
	b.WriteString("echo '" + executor.EndMarker + "' >&2\n")
	b.WriteString("echo '" + executor.EndMarker + "'")
	return b.String()
}

func (s *Shell) DetectActiveLine(line string) (int, bool) {
	return executor.ParseActiveLine(line)
}

// VersionProbe expects a bash style banner ("GNU bash, version X ...").
// Shells without --version report no version.
func (s *Shell) VersionProbe() executor.VersionProbe {
	return executor.VersionProbe{
		Command: []string{s.executable, "--version"},
		Source:  executor.ProbeStdout,
		Token:   3,
	}
}

var (
	continuationSuffixes = []string{"\\", "|", "&&", "||", "{", "(", " do", " then", " else", " in"}
	blockKeywords        = map[string]bool{
		"do": true, "done": true, "then": true, "else": true, "elif": true,
		"fi": true, "esac": true, "}": true, ")": true, ";;": true,
	}
)

// traceable reports whether every line of code is a complete command on its
// own, so a marker echo can go between any two lines.
func traceable(code string) bool {
	if strings.Contains(code, "<<") {
		return false
	}
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		// A quoted string spanning lines.
		if strings.Count(line, "'")%2 != 0 || strings.Count(line, `"`)%2 != 0 {
			return false
		}
		if blockKeywords[trimmed] || blockKeywords[strings.Fields(trimmed)[0]] {
			return false
		}
		for _, suffix := range continuationSuffixes {
			if trimmed == strings.TrimSpace(suffix) || strings.HasSuffix(trimmed, suffix) {
				return false
			}
		}
	}
	return true
}
