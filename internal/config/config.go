package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string        `yaml:"version"`
	Sqlite  SqliteConfig  `yaml:"sqlite"`
	Log     LogConfig     `yaml:"log"`
	History HistoryConfig `yaml:"history"`
	Watcher WatcherConfig `yaml:"watcher"`
	Restart RestartConfig `yaml:"restart"`
}

type SqliteConfig struct {
	Dsn    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string   `yaml:"level"`
	Writer []string `yaml:"writer"`
	File   string   `yaml:"file"`
}

type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

type WatcherConfig struct {
	MaxRetries     int            `yaml:"maxRetries"`
	RetryBackoffMS int            `yaml:"retryBackoffMS"`
	Watchdog       WatchdogConfig `yaml:"watchdog"`
}

type WatchdogConfig struct {
	Enabled       bool `yaml:"enabled"`
	IntervalS     int  `yaml:"intervalS"`
	StallTimeoutS int  `yaml:"stallTimeoutS"`
}

type RestartConfig struct {
	Max    int `yaml:"max"`
	PauseS int `yaml:"pauseS"`
}

// RetryBackoff 重试间隔
func (w WatcherConfig) RetryBackoff() time.Duration {
	return time.Duration(w.RetryBackoffMS) * time.Millisecond
}

// Interval 检测周期
func (w WatchdogConfig) Interval() time.Duration {
	return time.Duration(w.IntervalS) * time.Second
}

// StallTimeout 卡死判定阈值
func (w WatchdogConfig) StallTimeout() time.Duration {
	return time.Duration(w.StallTimeoutS) * time.Second
}

// Pause 相邻重启之间的停顿
func (r RestartConfig) Pause() time.Duration {
	return time.Duration(r.PauseS) * time.Second
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Sqlite: SqliteConfig{
			Dsn:    "history.sqlite3",
			Prefix: "urlclip_",
		},
		Log: LogConfig{
			Level:  "debug",
			Writer: []string{"console", "file"},
			File:   "logs/urlclip.log",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Watcher: WatcherConfig{
			MaxRetries:     3,
			RetryBackoffMS: 100,
			Watchdog: WatchdogConfig{
				Enabled:       true,
				IntervalS:     10,
				StallTimeoutS: 30,
			},
		},
		Restart: RestartConfig{
			Max:    5,
			PauseS: 2,
		},
	}
}

// Load 从 path 读取配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath 配置文件的默认查找位置：可执行文件目录优先，其次工作目录
func DefaultPath() string {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "config.yaml"
}
