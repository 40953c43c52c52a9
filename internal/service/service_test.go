package service

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlclip/internal/clipboard"
	"urlclip/internal/config"
	"urlclip/internal/logger"
	"urlclip/internal/storage"
	"urlclip/pkg/model"
)

type scriptedListener struct {
	mu       sync.Mutex
	text     string
	onChange func()
	quit     chan struct{}
	quitOnce sync.Once
	closed   bool
}

func newScriptedListener(text string) *scriptedListener {
	return &scriptedListener{text: text, quit: make(chan struct{})}
}

func (f *scriptedListener) Open(onChange func()) error {
	f.mu.Lock()
	f.onChange = onChange
	f.mu.Unlock()
	return nil
}

// ready Open 是否已在 Run goroutine 上完成，测试轮询用
func (f *scriptedListener) ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onChange != nil
}

func (f *scriptedListener) notify() {
	f.mu.Lock()
	cb := f.onChange
	f.mu.Unlock()
	cb()
}

func (f *scriptedListener) Pump() error { <-f.quit; return nil }

func (f *scriptedListener) PostQuit() {
	f.quitOnce.Do(func() { close(f.quit) })
}

func (f *scriptedListener) ReadText() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *scriptedListener) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	return nil
}

func (f *scriptedListener) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *scriptedListener) currentText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sqlite.Dsn = filepath.Join(t.TempDir(), "history.sqlite3")
	cfg.Watcher.RetryBackoffMS = 1
	cfg.Watcher.Watchdog.Enabled = false
	return cfg
}

func TestServiceRewritesAndPersists(t *testing.T) {
	cfg := testConfig(t)
	store, err := storage.Open(cfg.Sqlite, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rules := []model.Rule{{Domains: []string{"example.com"}, Suffix: "?ref=abc"}}
	fake := newScriptedListener("https://example.com/item")

	svc := New(cfg, rules, store, logger.NewNop())
	svc.newListener = func(logger.Logger) clipboard.Listener { return fake }

	done := make(chan struct{})
	var restart bool
	go func() {
		restart, err = svc.Run()
		close(done)
	}()
	require.Eventually(t, fake.ready, time.Second, time.Millisecond)

	fake.notify()
	assert.Equal(t, "https://example.com/item?ref=abc", fake.currentText())

	svc.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
	assert.False(t, restart)
	require.NoError(t, err)
	assert.True(t, fake.closed)

	// 事件已在会话结束前落库
	recs, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, string(model.EventRewritten), recs[0].Type)
	assert.Equal(t, "https://example.com/item?ref=abc", recs[0].Result)

	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.Rewritten)
}

func TestServiceRunsWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	rules := []model.Rule{{Domains: []string{"example.com"}, Suffix: "?ref=abc"}}
	fake := newScriptedListener("https://example.com/a")

	svc := New(cfg, rules, nil, logger.NewNop())
	svc.newListener = func(logger.Logger) clipboard.Listener { return fake }

	done := make(chan struct{})
	go func() {
		svc.Run()
		close(done)
	}()
	require.Eventually(t, fake.ready, time.Second, time.Millisecond)

	fake.notify()
	assert.Equal(t, "https://example.com/a?ref=abc", fake.currentText())

	svc.Stop()
	<-done
}

func TestServiceStatsBeforeRun(t *testing.T) {
	svc := New(testConfig(t), nil, nil, logger.NewNop())
	stats := svc.Stats()
	assert.Equal(t, int64(0), stats.Total)
	assert.NotNil(t, stats.ByRule)
}
