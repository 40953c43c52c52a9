package watcher

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"urlclip/internal/clipboard"
	"urlclip/internal/logger"
	"urlclip/internal/rewrite"
	"urlclip/pkg/model"
)

// Options 监听循环配置选项
type Options struct {
	MaxRetries       int           // 剪贴板读写最大尝试次数
	RetryBackoff     time.Duration // 相邻尝试之间的固定间隔
	Watchdog         bool          // 是否启用卡死检测
	WatchdogInterval time.Duration // 卡死检测周期
	StallTimeout     time.Duration // 无活动多久视为卡死
}

func (o *Options) fill() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 100 * time.Millisecond
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = 10 * time.Second
	}
	if o.StallTimeout <= 0 {
		o.StallTimeout = 30 * time.Second
	}
}

// Watcher 剪贴板监听循环。
// 主循环由操作系统消息驱动单线程运行；watchdog 在独立 goroutine
// 上只读活动时间戳、只写重启标记，共享字段全部用原子量。
type Watcher struct {
	session  model.SessionID
	engine   *rewrite.Engine
	listener clipboard.Listener
	log      logger.Logger
	events   chan model.Event
	opts     Options

	// clipMu 串行化整个打开-读写-关闭重试序列：系统剪贴板是全局资源，
	// 不能让同一进程的两次重试序列交错
	clipMu sync.Mutex

	ignoreNext   atomic.Bool
	lastActivity atomic.Int64 // unix nano
	running      atomic.Bool
	restart      atomic.Bool

	statsMu sync.Mutex
	stats   model.WatchStats
}

// New 创建监听循环。rules 在会话期间不可变，更新规则需要重建 Watcher。
func New(rules []model.Rule, l clipboard.Listener, log logger.Logger, opts Options) *Watcher {
	opts.fill()
	if log == nil {
		log = logger.NewNop()
	}
	w := &Watcher{
		session:  model.SessionID(uuid.NewString()),
		engine:   rewrite.New(rules),
		listener: l,
		log:      log,
		events:   make(chan model.Event, 64),
		opts:     opts,
	}
	w.stats.ByRule = make(map[int]int64)
	w.touch()
	return w
}

func (w *Watcher) Session() model.SessionID { return w.session }

// Events 监听事件流；通道写满时事件被丢弃而不是阻塞主循环
func (w *Watcher) Events() <-chan model.Event { return w.events }

// Stats 返回当前统计信息快照
func (w *Watcher) Stats() model.WatchStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	byRule := make(map[int]int64, len(w.stats.ByRule))
	for k, v := range w.stats.ByRule {
		byRule[k] = v
	}
	return model.WatchStats{Total: w.stats.Total, Rewritten: w.stats.Rewritten, ByRule: byRule}
}

// Stop 协作式停止：向消息循环投递退出消息
func (w *Watcher) Stop() {
	w.running.Store(false)
	w.listener.PostQuit()
}

// Run 阻塞运行监听循环直到退出。返回值表示是否请求整体重启
// （watchdog 超时或消息循环异常）；error 仅报告注册阶段的致命失败。
// 无论以何种方式退出，订阅都会在返回前注销。
func (w *Watcher) Run() (bool, error) {
	if err := w.listener.Open(w.onClipboardChange); err != nil {
		return false, fmt.Errorf("register clipboard listener: %w", err)
	}
	defer w.listener.Close()

	w.running.Store(true)
	w.touch()

	// watchdog 必须先于监听器释放退出，否则可能对已销毁的消息面投递退出消息
	done := make(chan struct{})
	watchdogDone := make(chan struct{})
	if w.opts.Watchdog {
		go func() {
			defer close(watchdogDone)
			w.watchdog(done)
		}()
	} else {
		close(watchdogDone)
	}
	defer func() {
		close(done)
		<-watchdogDone
	}()

	w.log.Info("剪贴板监听已启动", "session", string(w.session))
	if err := w.listener.Pump(); err != nil {
		w.log.Err(err, "消息循环异常退出", "session", string(w.session))
		w.restart.Store(true)
	}
	w.running.Store(false)
	return w.restart.Load(), nil
}

// watchdog 周期检查活动时间戳，超过阈值即请求重启并终止消息循环
func (w *Watcher) watchdog(done <-chan struct{}) {
	ticker := time.NewTicker(w.opts.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !w.running.Load() {
				return
			}
			idle := time.Since(time.Unix(0, w.lastActivity.Load()))
			if idle <= w.opts.StallTimeout {
				continue
			}
			w.log.Warn("疑似消息循环卡死，请求重启", "idle", idle.String())
			w.restart.Store(true)
			w.running.Store(false)
			w.emit(model.Event{Type: model.EventStalled})
			w.listener.PostQuit()
			return
		}
	}
}

// onClipboardChange 每次剪贴板变更通知的入口。
// 任何单次事件的异常都不允许拖垮整个监听循环。
func (w *Watcher) onClipboardChange() {
	w.touch()
	w.bumpTotal()

	// 单槽抑制标记：无论本次通知是否真由自身写入引起，见一次即消费
	if w.ignoreNext.CompareAndSwap(true, false) {
		w.log.Debug("跳过自身写入触发的通知")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("处理剪贴板事件时 panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			w.touch()
		}
	}()
	w.handleChange()
}

func (w *Watcher) handleChange() {
	text, err := w.readText()
	if err != nil {
		if errors.Is(err, clipboard.ErrNoText) {
			w.log.Debug("剪贴板内容不是文本，忽略")
			return
		}
		w.log.Warn("读取剪贴板失败，跳过本次事件", "error", err.Error())
		w.emit(model.Event{Type: model.EventReadFail, Error: err.Error()})
		return
	}

	if !isHTTPURL(text) {
		return
	}

	res := w.engine.Rewrite(text)
	if res.URL == text {
		if res.Rule >= 0 {
			// 命中规则但结果与原文相同，例如规则重复应用
			rule := res.Rule
			w.emit(model.Event{Type: model.EventSkipped, Original: text, Rule: &rule})
		}
		w.log.Debug("无匹配规则或无需改写", "url", text)
		return
	}

	// 先置抑制标记再写入；写入最终失败时必须撤销，
	// 否则标记会错误吞掉下一次外部变更
	w.ignoreNext.Store(true)
	if err := w.writeText(res.URL); err != nil {
		w.ignoreNext.Store(false)
		w.log.Err(err, "写回剪贴板失败", "url", res.URL)
		w.emit(model.Event{Type: model.EventWriteFail, Original: text, Result: res.URL, Error: err.Error()})
		return
	}

	w.bumpRewritten(res.Rule)
	rule := res.Rule
	w.emit(model.Event{Type: model.EventRewritten, Original: text, Result: res.URL, Rule: &rule})
	w.log.Info("剪贴板已更新", "url", res.URL, "rule", res.Rule)
}

// readText 带重试读取剪贴板文本，整个重试序列持有剪贴板锁。
// 非文本内容不重试：那不是竞争，是内容本身不适用。
func (w *Watcher) readText() (string, error) {
	w.clipMu.Lock()
	defer w.clipMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxRetries; attempt++ {
		text, err := w.listener.ReadText()
		if err == nil {
			return text, nil
		}
		if errors.Is(err, clipboard.ErrNoText) {
			return "", err
		}
		lastErr = err
		w.log.Warn("剪贴板读取尝试失败", "attempt", attempt, "error", err.Error())
		if attempt < w.opts.MaxRetries {
			time.Sleep(w.opts.RetryBackoff)
		}
	}
	return "", lastErr
}

func (w *Watcher) writeText(text string) error {
	w.clipMu.Lock()
	defer w.clipMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxRetries; attempt++ {
		err := w.listener.WriteText(text)
		if err == nil {
			return nil
		}
		lastErr = err
		w.log.Warn("剪贴板写入尝试失败", "attempt", attempt, "error", err.Error())
		if attempt < w.opts.MaxRetries {
			time.Sleep(w.opts.RetryBackoff)
		}
	}
	return lastErr
}

func (w *Watcher) touch() { w.lastActivity.Store(time.Now().UnixNano()) }

func (w *Watcher) bumpTotal() {
	w.statsMu.Lock()
	w.stats.Total++
	w.statsMu.Unlock()
}

func (w *Watcher) bumpRewritten(rule int) {
	w.statsMu.Lock()
	w.stats.Rewritten++
	w.stats.ByRule[rule]++
	w.statsMu.Unlock()
}

// emit 非阻塞发送事件并补齐会话与时间戳
func (w *Watcher) emit(evt model.Event) {
	evt.Session = w.session
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case w.events <- evt:
	default:
	}
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
