package supervise

import (
	"fmt"
	"time"

	"urlclip/internal/logger"
)

// Runner 一轮完整的监听会话，返回是否请求重启
type Runner func() (restart bool, err error)

// Options 重启策略
type Options struct {
	Max   int           // 连续重启次数上限
	Pause time.Duration // 相邻两轮之间的停顿
}

// ErrRestartLimit 连续重启达到上限
var ErrRestartLimit = fmt.Errorf("restart limit reached")

// Run 带上限的会话重启循环。
// run 返回错误视为致命、立即退出；返回 restart=false 视为正常结束。
// 连续重启达到上限时返回 ErrRestartLimit，由调用方决定是否整进程重拉。
func Run(run Runner, opts Options, log logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Max <= 0 {
		opts.Max = 5
	}

	for attempt := 1; ; attempt++ {
		restart, err := run()
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}
		if attempt >= opts.Max {
			log.Error("连续重启达到上限", "max", opts.Max)
			return fmt.Errorf("%w after %d attempts", ErrRestartLimit, opts.Max)
		}
		log.Warn("会话请求重启", "attempt", attempt, "max", opts.Max)
		if opts.Pause > 0 {
			time.Sleep(opts.Pause)
		}
	}
}
