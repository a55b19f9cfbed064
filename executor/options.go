package executor

import (
	"log/slog"
	"time"
)

// SessionOption configures a Session at creation time.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	timeout          time.Duration // per run, 0 = none
	spawnGrace       time.Duration
	terminateTimeout time.Duration
	probeTimeout     time.Duration
	dir              string
	env              map[string]string
	logger           *slog.Logger
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		spawnGrace:       100 * time.Millisecond,
		terminateTimeout: 2 * time.Second,
		probeTimeout:     5 * time.Second,
		env:              make(map[string]string),
		logger:           slog.New(slog.DiscardHandler),
	}
}

// WithTimeout bounds each run. When it expires the interpreter is terminated
// and the run ends with an error event. Zero disables the bound.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithSpawnGrace sets how long a fresh interpreter must stay alive before it
// counts as started. An exit inside the window is reported as a spawn error.
func WithSpawnGrace(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.spawnGrace = d
	}
}

// WithTerminateTimeout sets how long Terminate waits after SIGTERM before
// sending SIGKILL.
func WithTerminateTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.terminateTimeout = d
	}
}

// WithProbeTimeout bounds version and installation probes.
func WithProbeTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.probeTimeout = d
	}
}

// WithDir sets the interpreters' working directory. Default: inherited.
func WithDir(dir string) SessionOption {
	return func(c *sessionConfig) {
		c.dir = dir
	}
}

// WithEnv adds an environment variable on top of the inherited environment.
func WithEnv(key, value string) SessionOption {
	return func(c *sessionConfig) {
		c.env[key] = value
	}
}

// WithLogger sets the logger for process lifecycle messages.
func WithLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
