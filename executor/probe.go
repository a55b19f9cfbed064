package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// runProbe runs the version command with stdin at /dev/null, so an
// interpreter that falls into a prompt gets EOF instead of hanging.
func runProbe(ctx context.Context, vp VersionProbe, timeout time.Duration) (stdout, stderr string, err error) {
	if len(vp.Command) == 0 {
		return "", "", fmt.Errorf("%w: no version command", ErrProbe)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, vp.Command[0], vp.Command[1:]...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcess(cmd) }
	cmd.WaitDelay = 500 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return outBuf.String(), errBuf.String(), fmt.Errorf("%w: %s: %w", ErrProbe, strings.Join(vp.Command, " "), err)
	}
	return outBuf.String(), errBuf.String(), nil
}

// parseVersion picks the banner from the configured stream and returns the
// whitespace token at the configured index.
func parseVersion(vp VersionProbe, stdout, stderr string) (string, error) {
	banner := stdout
	if vp.Source == ProbeStderr && strings.TrimSpace(stderr) != "" {
		banner = stderr
	}

	fields := strings.Fields(banner)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty version banner", ErrProbe)
	}
	if vp.Token < 0 || vp.Token >= len(fields) {
		return "", fmt.Errorf("%w: banner %q has no token %d", ErrProbe, strings.TrimSpace(banner), vp.Token)
	}
	return fields[vp.Token], nil
}

func probeVersion(ctx context.Context, vp VersionProbe, timeout time.Duration) (string, error) {
	stdout, stderr, err := runProbe(ctx, vp, timeout)
	if err != nil {
		return "", err
	}
	return parseVersion(vp, stdout, stderr)
}

// isNotInstalled reports whether a probe failed because the executable
// does not exist, as opposed to failing while running.
func isNotInstalled(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
