//go:build !unix

package executor

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

// terminateProcess kills outright: there is no portable polite signal here.
func terminateProcess(cmd *exec.Cmd) error {
	return killProcess(cmd)
}

func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
