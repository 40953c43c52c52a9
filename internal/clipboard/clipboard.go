package clipboard

import "errors"

var (
	// ErrNoText 剪贴板当前内容不是纯文本（按读取失败处理，不视为错误事件）
	ErrNoText = errors.New("clipboard has no text content")
	// ErrUnsupported 当前平台没有剪贴板监听实现
	ErrUnsupported = errors.New("clipboard listener not supported on this platform")
)

// Listener 操作系统剪贴板监听绑定。
//
// Open 和 Pump 必须在同一个 goroutine 上先后调用（消息窗口的线程约束），
// Open 失败属于致命错误，由调用方决定是否整体重启。
// ReadText、WriteText、PostQuit 可以从任意 goroutine 调用。
type Listener interface {
	// Open 清理遗留监听窗口、注册消息窗口并订阅剪贴板变更通知
	Open(onChange func()) error
	// Pump 阻塞运行消息循环，收到退出消息后返回
	Pump() error
	// PostQuit 向消息循环投递退出消息，用于跨线程请求终止
	PostQuit()
	// ReadText 读取剪贴板纯文本内容
	ReadText() (string, error)
	// WriteText 以纯文本格式覆盖剪贴板内容
	WriteText(text string) error
	// Close 注销剪贴板订阅并销毁消息窗口，可重复调用
	Close()
}
