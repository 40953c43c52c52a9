package service

import (
	"sync"

	"urlclip/internal/clipboard"
	"urlclip/internal/config"
	"urlclip/internal/logger"
	"urlclip/internal/storage"
	"urlclip/internal/watcher"
	"urlclip/pkg/model"
)

// Service 组合配置、规则、剪贴板监听与历史存储的顶层服务
type Service struct {
	cfg   *config.Config
	log   logger.Logger
	rules []model.Rule
	store *storage.Store // 可为 nil，表示历史记录关闭

	// newListener 默认绑定系统剪贴板，测试中替换为替身
	newListener func(logger.Logger) clipboard.Listener

	mu sync.Mutex
	w  *watcher.Watcher
}

// New 创建服务实例。store 传 nil 时跳过历史落库。
func New(cfg *config.Config, rules []model.Rule, store *storage.Store, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{cfg: cfg, log: l, rules: rules, store: store, newListener: clipboard.New}
}

// Run 运行一轮完整的监听会话直到退出。
// 返回值含义与 watcher.Run 一致：是否请求整体重启。
func (s *Service) Run() (bool, error) {
	l := s.newListener(s.log)
	w := watcher.New(s.rules, l, s.log, watcher.Options{
		MaxRetries:       s.cfg.Watcher.MaxRetries,
		RetryBackoff:     s.cfg.Watcher.RetryBackoff(),
		Watchdog:         s.cfg.Watcher.Watchdog.Enabled,
		WatchdogInterval: s.cfg.Watcher.Watchdog.Interval(),
		StallTimeout:     s.cfg.Watcher.Watchdog.StallTimeout(),
	})

	s.mu.Lock()
	s.w = w
	s.mu.Unlock()

	stop := make(chan struct{})
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		s.consumeEvents(w.Events(), stop)
	}()

	s.log.Info("监听会话启动", "session", string(w.Session()), "rules", len(s.rules))
	restart, err := w.Run()

	// 停掉消费循环后把通道里剩余的事件处理完，再汇报统计
	close(stop)
	<-consumed
	s.drainRemaining(w)

	stats := w.Stats()
	s.log.Info("监听会话结束",
		"session", string(w.Session()),
		"restart", restart,
		"total", stats.Total,
		"rewritten", stats.Rewritten,
	)
	return restart, err
}

// Stop 协作式停止当前会话
func (s *Service) Stop() {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// Stats 当前会话的统计快照
func (s *Service) Stats() model.WatchStats {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	if w == nil {
		return model.WatchStats{ByRule: map[int]int64{}}
	}
	return w.Stats()
}

// consumeEvents 事件消费循环：落库失败只记日志，绝不反压监听主循环
func (s *Service) consumeEvents(events <-chan model.Event, stop <-chan struct{}) {
	for {
		select {
		case evt := <-events:
			s.persist(evt)
		case <-stop:
			return
		}
	}
}

// drainRemaining 会话结束后把通道里剩余的事件处理完
func (s *Service) drainRemaining(w *watcher.Watcher) {
	for {
		select {
		case evt := <-w.Events():
			s.persist(evt)
		default:
			return
		}
	}
}

func (s *Service) persist(evt model.Event) {
	if s.store == nil || !s.cfg.History.Enabled {
		return
	}
	if err := s.store.Append(evt); err != nil {
		s.log.Err(err, "历史记录落库失败", "type", string(evt.Type))
	}
}
