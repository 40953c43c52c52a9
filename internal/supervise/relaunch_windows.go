//go:build windows

package supervise

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	detachedProcess       = 0x00000008
)

// Relaunch 以分离方式启动一份新的自身进程。
// 新进程不继承控制台也不随本进程组退出，用于进程内重启循环
// 达到上限后的最终兜底：换一个干净的进程从头再来。
func Relaunch() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewProcessGroup | detachedProcess,
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("relaunch %q: %w", exe, err)
	}
	return nil
}
