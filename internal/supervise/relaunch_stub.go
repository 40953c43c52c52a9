//go:build !windows

package supervise

import (
	"fmt"
	"os"
	"os/exec"
)

// Relaunch 非 windows 平台的简化实现：直接启动新进程，不做分离
func Relaunch() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("relaunch %q: %w", exe, err)
	}
	return nil
}
