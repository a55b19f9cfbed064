package executor

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name   string
		probe  VersionProbe
		stdout string
		stderr string
		want   string
		ok     bool
	}{
		{
			name:   "ruby banner on stdout",
			probe:  VersionProbe{Source: ProbeStdout, Token: 1},
			stdout: "ruby 3.2.2 (2023-03-30 revision e51014f9c0) [x86_64-linux]\n",
			want:   "3.2.2",
			ok:     true,
		},
		{
			name:   "stdout source ignores stderr",
			probe:  VersionProbe{Source: ProbeStdout, Token: 1},
			stdout: "ruby 3.3.0\n",
			stderr: "warning: something\n",
			want:   "3.3.0",
			ok:     true,
		},
		{
			name:   "stderr preferred",
			probe:  VersionProbe{Source: ProbeStderr, Token: 5},
			stdout: "ignored\n",
			stderr: "R scripting front-end version 3.6.3 (2020-02-29)\n",
			want:   "(2020-02-29)",
			ok:     true,
		},
		{
			name:   "stderr empty falls back to stdout",
			probe:  VersionProbe{Source: ProbeStderr, Token: 1},
			stdout: "tool 1.2.3\n",
			stderr: "  \n",
			want:   "1.2.3",
			ok:     true,
		},
		{
			name:   "token out of range",
			probe:  VersionProbe{Source: ProbeStderr, Token: 5},
			stdout: "Rscript (R) version 4.3.1\n",
		},
		{
			name:  "empty banner",
			probe: VersionProbe{Source: ProbeStdout, Token: 0},
		},
		{
			name:   "negative token",
			probe:  VersionProbe{Source: ProbeStdout, Token: -1},
			stdout: "ruby 3.2.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersion(tt.probe, tt.stdout, tt.stderr)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("got %q, want %q", got, tt.want)
				}
				return
			}
			if !errors.Is(err, ErrProbe) {
				t.Errorf("expected ErrProbe, got %q, %v", got, err)
			}
		})
	}
}

func TestRunProbeMissingExecutable(t *testing.T) {
	start := time.Now()
	_, _, err := runProbe(context.Background(), VersionProbe{Command: []string{"replshim-no-such-binary", "--version"}}, time.Second)
	if !errors.Is(err, ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
	if !isNotInstalled(err) {
		t.Errorf("expected not-installed classification, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("probe of missing executable took %v", elapsed)
	}
}

func TestRunProbeNoCommand(t *testing.T) {
	if _, _, err := runProbe(context.Background(), VersionProbe{}, time.Second); !errors.Is(err, ErrProbe) {
		t.Errorf("expected ErrProbe, got %v", err)
	}
}

func TestRunProbeTimeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	start := time.Now()
	_, _, err := runProbe(context.Background(), VersionProbe{Command: []string{"sh", "-c", "sleep 10"}}, 200*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("probe did not respect timeout: %v", elapsed)
	}
}

func TestRunProbeStdinClosed(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	// A probe that reads stdin, like an interpreter dropping into a prompt,
	// must see EOF rather than wait for input.
	stdout, _, err := runProbe(context.Background(), VersionProbe{Command: []string{"sh", "-c", "read line || exit 7; echo got-input"}}, 5*time.Second)
	if err == nil {
		t.Fatalf("expected read to fail on closed stdin, got output %q", stdout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("probe waited for input instead of reading EOF: %v", err)
	}
}

func TestProbeVersion(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	vp := VersionProbe{Command: []string{"sh", "-c", "echo 'fake 9.8.7' >&2"}, Source: ProbeStderr, Token: 1}
	got, err := probeVersion(context.Background(), vp, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "9.8.7" {
		t.Errorf("got %q, want %q", got, "9.8.7")
	}

	vp = VersionProbe{Command: []string{"sh", "-c", "echo 'fake 1.0'; exit 3"}, Source: ProbeStdout, Token: 1}
	if _, err := probeVersion(context.Background(), vp, time.Second); !errors.Is(err, ErrProbe) {
		t.Errorf("expected ErrProbe for failing command, got %v", err)
	}
}
