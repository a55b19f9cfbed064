// Package r provides the R language adapter.
package r

import "github.com/caffeineduck/replshim/executor"

// driver reads stdin in chunks ending with the marker line, then parses and
// evaluates the chunk in the global environment, auto-printing visible
// values. An error is reported on stderr and the markers are printed anyway.
// The loop runs under local() so user code never sees or removes its state.
const driver = `options(warn = 1)
local({
  con <- file("stdin")
  open(con)
  marker <- "##end_of_execution##"
  buf <- character()
  repeat {
    line <- readLines(con, n = 1L, warn = FALSE)
    if (length(line) == 0L) break
    buf <- c(buf, line)
    if (!grepl(marker, line, fixed = TRUE)) next
    tryCatch({
      for (e in parse(text = buf, keep.source = FALSE)) {
        res <- withVisible(eval(e, envir = globalenv()))
        if (res$visible) print(res$value)
      }
    }, error = function(err) {
      message("Error: ", conditionMessage(err))
      message(marker)
      cat(marker, "\n", sep = "")
    })
    flush(stdout())
    buf <- character()
  }
})`

// R implements executor.Language for R.
type R struct {
	executor.Base
	executable string
}

// Option configures the adapter.
type Option func(*R)

// WithExecutable sets the Rscript binary. Default: "Rscript" from PATH.
func WithExecutable(path string) Option {
	return func(r *R) {
		if path != "" {
			r.executable = path
		}
	}
}

// New returns an R language adapter.
func New(opts ...Option) *R {
	r := &R{executable: "Rscript"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns "r".
func (r *R) Name() string {
	return "r"
}

func (r *R) Config() executor.Config {
	return executor.Config{
		StartCommand:  []string{r.executable, "--vanilla", "-e", driver},
		FileExtension: "r",
		DisplayName:   "R",
		StderrMarker:  true,
	}
}

// PreprocessCode appends one line printing the end marker on stderr and
// then stdout. The driver splits chunks on that line.
func (r *R) PreprocessCode(code string) string {
	return code + "\nmessage(\"" + executor.EndMarker + "\"); cat(\"" + executor.EndMarker + "\\n\")"
}

// VersionProbe reads the banner from stderr, where older R versions write
// it, falling back to stdout. The version is the sixth token.
func (r *R) VersionProbe() executor.VersionProbe {
	return executor.VersionProbe{
		Command: []string{r.executable, "--version"},
		Source:  executor.ProbeStderr,
		Token:   5,
	}
}
