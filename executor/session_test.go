package executor_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/replshim/executor"
	"github.com/caffeineduck/replshim/language/shell"
)

// exitingLanguage starts an interpreter that dies straight away, like a
// binary that exists but cannot run.
type exitingLanguage struct {
	executor.Base
}

func (exitingLanguage) Name() string { return "exiting" }

func (exitingLanguage) Config() executor.Config {
	return executor.Config{StartCommand: []string{"sh", "-c", "echo boom >&2; exit 3"}}
}

func (exitingLanguage) PreprocessCode(code string) string { return code }

func (exitingLanguage) VersionProbe() executor.VersionProbe {
	return executor.VersionProbe{Command: []string{"sh", "-c", "exit 1"}}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newShellSession(t *testing.T, opts ...executor.SessionOption) *executor.Session {
	t.Helper()
	requireShell(t)
	session := executor.NewSession(executor.NewRegistry(shell.New(), exitingLanguage{}), opts...)
	t.Cleanup(func() { session.Close() })
	return session
}

func shellRun(code string) executor.Request {
	return executor.Request{Language: "shell", Code: code}
}

func outputLines(events []executor.Event) []string {
	var lines []string
	for _, ev := range events {
		if ev.Kind == executor.EventOutput {
			lines = append(lines, ev.Text)
		}
	}
	return lines
}

func countKind(events []executor.Event, kind executor.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestSessionBasic(t *testing.T) {
	session := newShellSession(t)

	result := session.Run(context.Background(), shellRun(`echo hello`))
	if result.Error != nil {
		t.Fatalf("run failed: %v", result.Error)
	}
	if result.Output != "hello\n" {
		t.Errorf("expected 'hello', got %q", result.Output)
	}

	want := []executor.Event{
		{Kind: executor.EventActiveLine, Line: 1},
		{Kind: executor.EventOutput, Stream: executor.Stdout, Text: "hello"},
		{Kind: executor.EventEnd},
	}
	if len(result.Events) != len(want) {
		t.Fatalf("got events %+v, want %+v", result.Events, want)
	}
	for i := range want {
		if result.Events[i] != want[i] {
			t.Errorf("event %d: got %+v, want %+v", i, result.Events[i], want[i])
		}
	}
}

func TestSessionExactlyOneEndAndNoMarker(t *testing.T) {
	session := newShellSession(t)

	codes := []string{
		`echo one`,
		`printf 'no newline'`,
		"echo a\necho b\necho c",
		"for i in 1 2 3\ndo\n  echo $i\ndone",
		`true`,
		`echo "quoted ##hash##"`,
	}
	for _, code := range codes {
		result := session.Run(context.Background(), shellRun(code))
		if result.Error != nil {
			t.Fatalf("%q: run failed: %v", code, result.Error)
		}
		if n := countKind(result.Events, executor.EventEnd); n != 1 {
			t.Errorf("%q: expected exactly one end event, got %d", code, n)
		}
		if !result.Events[len(result.Events)-1].Terminal() {
			t.Errorf("%q: last event is not terminal: %+v", code, result.Events)
		}
		for _, line := range outputLines(result.Events) {
			if strings.Contains(line, executor.EndMarker) {
				t.Errorf("%q: end marker leaked into output %q", code, line)
			}
		}
	}
}

func TestSessionOutputSharingMarkerLine(t *testing.T) {
	session := newShellSession(t)

	result := session.Run(context.Background(), shellRun(`printf 'partial'`))
	if result.Error != nil {
		t.Fatalf("run failed: %v", result.Error)
	}
	if got := outputLines(result.Events); len(got) != 1 || got[0] != "partial" {
		t.Errorf("expected ['partial'], got %q", got)
	}
}

func TestSessionMultiLineConstructNotTraced(t *testing.T) {
	session := newShellSession(t)

	result := session.Run(context.Background(), shellRun("for i in 1 2 3\ndo\n  echo $i\ndone"))
	if result.Error != nil {
		t.Fatalf("run failed: %v", result.Error)
	}
	if result.Output != "1\n2\n3\n" {
		t.Errorf("unexpected output %q", result.Output)
	}
	if n := countKind(result.Events, executor.EventActiveLine); n != 0 {
		t.Errorf("expected no active lines for a loop, got %d", n)
	}
}

func TestSessionStatePersists(t *testing.T) {
	session := newShellSession(t)

	if result := session.Run(context.Background(), shellRun(`x=42`)); result.Error != nil {
		t.Fatalf("first run failed: %v", result.Error)
	}
	result := session.Run(context.Background(), shellRun(`echo $x`))
	if result.Error != nil {
		t.Fatalf("second run failed: %v", result.Error)
	}
	if result.Output != "42\n" {
		t.Errorf("expected '42', got %q", result.Output)
	}
}

func TestSessionReusesProcess(t *testing.T) {
	session := newShellSession(t)

	if _, ok := session.PID("shell"); ok {
		t.Fatal("no interpreter should run before the first request")
	}

	result := session.Run(context.Background(), shellRun(`echo first`))
	if result.Error != nil {
		t.Fatalf("first run failed: %v", result.Error)
	}
	pid1, ok := session.PID("shell")
	if !ok {
		t.Fatal("expected a live interpreter after a run")
	}

	result = session.Run(context.Background(), shellRun(`echo second`))
	if result.Error != nil {
		t.Fatalf("second run failed: %v", result.Error)
	}
	pid2, _ := session.PID("shell")
	if pid1 != pid2 {
		t.Errorf("expected the same interpreter, got pids %d and %d", pid1, pid2)
	}
}

func TestSessionStderr(t *testing.T) {
	session := newShellSession(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		want := fmt.Sprintf("oops-%d", i)
		result := session.Run(ctx, shellRun("echo "+want+" >&2"))
		if result.Error != nil {
			t.Fatalf("run %d failed: %v", i, result.Error)
		}
		var stderr []string
		for _, ev := range result.Events {
			if ev.Kind == executor.EventOutput && ev.Stream == executor.Stderr {
				stderr = append(stderr, ev.Text)
			}
		}
		if len(stderr) != 1 || stderr[0] != want {
			t.Fatalf("run %d: expected stderr [%s], got %q", i, want, stderr)
		}
	}
}

func TestSessionStreamsIncrementally(t *testing.T) {
	session := newShellSession(t)

	start := time.Now()
	var firstAt time.Duration
	for ev := range session.Stream(context.Background(), shellRun("echo early\nsleep 1\necho late")) {
		if ev.Kind == executor.EventOutput && ev.Text == "early" {
			firstAt = time.Since(start)
		}
	}
	if firstAt == 0 {
		t.Fatal("never saw 'early'")
	}
	if firstAt > 900*time.Millisecond {
		t.Errorf("first line arrived after %v, output was buffered", firstAt)
	}
}

func TestSessionProcessDiesMidRun(t *testing.T) {
	session := newShellSession(t)

	result := session.Run(context.Background(), shellRun(`echo before; exit 3`))
	if !errors.Is(result.Error, executor.ErrProcessExited) {
		t.Fatalf("expected ErrProcessExited, got %v", result.Error)
	}
	if !strings.Contains(result.Output, "before") {
		t.Errorf("expected output before the crash, got %q", result.Output)
	}
	if n := countKind(result.Events, executor.EventEnd); n != 0 {
		t.Errorf("expected no end event after a crash, got %d", n)
	}
	if _, ok := session.PID("shell"); ok {
		t.Error("dead interpreter still reported as live")
	}

	result = session.Run(context.Background(), shellRun(`echo recovered`))
	if result.Error != nil {
		t.Fatalf("run after crash failed: %v", result.Error)
	}
	if result.Output != "recovered\n" {
		t.Errorf("expected 'recovered', got %q", result.Output)
	}
}

func TestSessionRespawnAfterTerminate(t *testing.T) {
	session := newShellSession(t)

	if result := session.Run(context.Background(), shellRun(`echo one`)); result.Error != nil {
		t.Fatalf("first run failed: %v", result.Error)
	}
	pid1, _ := session.PID("shell")

	if err := session.Terminate("shell"); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	if err := session.Terminate("shell"); err != nil {
		t.Fatalf("second terminate failed: %v", err)
	}
	if _, ok := session.PID("shell"); ok {
		t.Fatal("interpreter still live after terminate")
	}

	result := session.Run(context.Background(), shellRun(`echo two`))
	if result.Error != nil {
		t.Fatalf("run after terminate failed: %v", result.Error)
	}
	if n := countKind(result.Events, executor.EventEnd); n != 1 {
		t.Errorf("expected one end event, got %d", n)
	}
	pid2, ok := session.PID("shell")
	if !ok || pid2 == pid1 {
		t.Errorf("expected a new interpreter, got pid %d (was %d)", pid2, pid1)
	}
}

func TestSessionTerminateUnknownIsNoop(t *testing.T) {
	session := newShellSession(t)
	if err := session.Terminate("shell"); err != nil {
		t.Errorf("terminate before any run: %v", err)
	}
	if err := session.Terminate("cobol"); err != nil {
		t.Errorf("terminate of unknown language: %v", err)
	}
}

func TestSessionUnknownLanguage(t *testing.T) {
	session := newShellSession(t)

	result := session.Run(context.Background(), executor.Request{Language: "cobol", Code: "x"})
	if !errors.Is(result.Error, executor.ErrUnknownLanguage) {
		t.Errorf("expected ErrUnknownLanguage, got %v", result.Error)
	}
	if len(result.Events) != 1 {
		t.Errorf("expected a single error event, got %+v", result.Events)
	}
}

func TestSessionMissingExecutable(t *testing.T) {
	registry := executor.NewRegistry(shell.New(shell.WithExecutable("replshim-no-such-shell")))
	session := executor.NewSession(registry)
	defer session.Close()

	result := session.Run(context.Background(), shellRun(`echo hi`))
	if !errors.Is(result.Error, executor.ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", result.Error)
	}
	if !errors.Is(result.Error, exec.ErrNotFound) {
		t.Errorf("expected the lookup failure to be wrapped, got %v", result.Error)
	}
	if len(result.Events) != 1 || result.Events[0].Kind != executor.EventError {
		t.Errorf("expected only a terminal error event, got %+v", result.Events)
	}
}

func TestSessionImmediateExitIsSpawnError(t *testing.T) {
	session := newShellSession(t, executor.WithSpawnGrace(500*time.Millisecond))

	result := session.Run(context.Background(), executor.Request{Language: "exiting", Code: "x"})
	var spawnErr *executor.SpawnError
	if !errors.As(result.Error, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %v", result.Error)
	}
	if !errors.Is(result.Error, executor.ErrSpawn) {
		t.Errorf("SpawnError should match ErrSpawn")
	}
	if spawnErr.Language != "exiting" {
		t.Errorf("unexpected language %q", spawnErr.Language)
	}
	if !strings.Contains(spawnErr.Stderr, "boom") {
		t.Errorf("expected early stderr in spawn error, got %q", spawnErr.Stderr)
	}

	// A failed spawn of one language leaves the others usable.
	if result := session.Run(context.Background(), shellRun(`echo fine`)); result.Error != nil {
		t.Errorf("shell run after failed spawn: %v", result.Error)
	}
}

func TestSessionTimeout(t *testing.T) {
	session := newShellSession(t, executor.WithTimeout(300*time.Millisecond), executor.WithTerminateTimeout(time.Second))

	start := time.Now()
	result := session.Run(context.Background(), shellRun(`sleep 10`))
	if !errors.Is(result.Error, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", result.Error)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}

	result = session.Run(context.Background(), shellRun(`echo after`))
	if result.Error != nil {
		t.Fatalf("run after timeout failed: %v", result.Error)
	}
	if result.Output != "after\n" {
		t.Errorf("expected 'after', got %q", result.Output)
	}
}

func TestSessionContextCancel(t *testing.T) {
	session := newShellSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	var sawError bool
	for ev := range session.Stream(ctx, shellRun("echo started\nsleep 10")) {
		if ev.Kind == executor.EventOutput && ev.Text == "started" {
			cancel()
		}
		if ev.Kind == executor.EventError {
			sawError = errors.Is(ev.Err, context.Canceled)
		}
	}
	cancel()
	if !sawError {
		t.Error("expected a cancellation error event")
	}
}

func TestSessionConsumerStopsEarly(t *testing.T) {
	session := newShellSession(t)

	for ev := range session.Stream(context.Background(), shellRun("echo a\necho b\nsleep 10")) {
		if ev.Kind == executor.EventOutput {
			break
		}
	}
	if _, ok := session.PID("shell"); ok {
		t.Error("interpreter should be terminated after an abandoned run")
	}

	result := session.Run(context.Background(), shellRun(`echo next`))
	if result.Error != nil || result.Output != "next\n" {
		t.Errorf("run after abandoned run: output %q, error %v", result.Output, result.Error)
	}
}

func TestSessionLargeInput(t *testing.T) {
	session := newShellSession(t)

	// Larger than a pipe buffer, with output produced while input is
	// still being written.
	var b strings.Builder
	for i := 0; i < 5000; i++ {
		b.WriteString("echo line-of-output-with-some-padding-to-fill-the-pipe\n")
	}
	result := session.Run(context.Background(), shellRun(b.String()))
	if result.Error != nil {
		t.Fatalf("run failed: %v", result.Error)
	}
	if n := len(outputLines(result.Events)); n != 5000 {
		t.Errorf("expected 5000 output lines, got %d", n)
	}
}

func TestSessionClosed(t *testing.T) {
	session := newShellSession(t)

	if result := session.Run(context.Background(), shellRun(`echo hi`)); result.Error != nil {
		t.Fatalf("run failed: %v", result.Error)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if _, ok := session.PID("shell"); ok {
		t.Error("interpreter still live after close")
	}

	result := session.Run(context.Background(), shellRun(`echo hi`))
	if !errors.Is(result.Error, executor.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", result.Error)
	}
}

func TestSessionInstalledVersionMissing(t *testing.T) {
	registry := executor.NewRegistry(shell.New(shell.WithExecutable("replshim-no-such-shell")))
	session := executor.NewSession(registry, executor.WithProbeTimeout(2*time.Second))
	defer session.Close()

	start := time.Now()
	if session.CheckInstalled(context.Background(), "shell") {
		t.Error("missing executable reported as installed")
	}
	if v, ok := session.InstalledVersion(context.Background(), "shell"); ok {
		t.Errorf("missing executable reported version %q", v)
	}
	if _, ok := session.InstalledVersion(context.Background(), "cobol"); ok {
		t.Error("unknown language reported a version")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probes took %v", elapsed)
	}
}

func TestSessionEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	session := newShellSession(t, executor.WithEnv("REPLSHIM_TEST_VALUE", "from-env"), executor.WithDir(dir))

	result := session.Run(context.Background(), shellRun("echo $REPLSHIM_TEST_VALUE\npwd"))
	if result.Error != nil {
		t.Fatalf("run failed: %v", result.Error)
	}
	lines := outputLines(result.Events)
	if len(lines) != 2 || lines[0] != "from-env" {
		t.Fatalf("unexpected output %q", lines)
	}
	if !strings.HasSuffix(lines[1], dir) {
		t.Errorf("expected working directory %q, got %q", dir, lines[1])
	}
}

func TestSessionIDs(t *testing.T) {
	a := executor.NewSession(nil)
	b := executor.NewSession(nil)
	defer a.Close()
	defer b.Close()

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("expected distinct session ids, got %q and %q", a.ID(), b.ID())
	}
}
