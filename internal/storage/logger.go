package storage

import (
	"context"
	"time"

	"gorm.io/gorm/logger"

	"urlclip/internal/ctxkeys"
	logger2 "urlclip/internal/logger"
)

// slowThreshold 超过该耗时的 SQL 按慢查询告警
const slowThreshold = time.Second

// GormLogger 把注入的结构化日志桥接到 gorm 的 logger.Interface。
// 历史表的写入跟着剪贴板事件走、频率不低，默认级别压到 Warn，
// 正常落库不刷日志，只有异常和慢查询会浮出来。
type GormLogger struct {
	logger2.Logger
	LogLevel logger.LogLevel
}

func NewGormLogger(l logger2.Logger) *GormLogger {
	return &GormLogger{Logger: l, LogLevel: logger.Warn}
}

// LogMode 按 gorm 会话要求派生指定级别的副本
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info(msg, append([]any{"traceId", ctx.Value(ctxkeys.TraceIDKey{})}, data...)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn(msg, append([]any{"traceId", ctx.Value(ctxkeys.TraceIDKey{})}, data...)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.Logger.Error(msg, append([]any{"traceId", ctx.Value(ctxkeys.TraceIDKey{})}, data...)...)
	}
}

// Trace 逐条 SQL 的回调：错误、慢查询、常规执行各走各的级别
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"traceId", ctx.Value(ctxkeys.TraceIDKey{}),
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && l.LogLevel >= logger.Error:
		l.Logger.Error("历史库 SQL 执行失败", append(fields, "error", err)...)
	case elapsed > slowThreshold && l.LogLevel >= logger.Warn:
		l.Logger.Warn("历史库慢查询", append(fields, "threshold", slowThreshold.String())...)
	case l.LogLevel == logger.Info:
		l.Logger.Debug("历史库 SQL 执行", fields...)
	}
}
