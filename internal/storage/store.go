package storage

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"urlclip/internal/config"
	"urlclip/internal/logger"
	"urlclip/pkg/model"
)

// RewriteRecord 一次改写的落库记录
type RewriteRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Session   string `gorm:"size:36;index"`
	Type      string `gorm:"size:16;index"`
	Original  string
	Result    string
	RuleIndex *int
	Error     string
	CreatedAt time.Time
}

// Store 改写历史存储
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开 sqlite 数据库并迁移表结构
func Open(cfg config.SqliteConfig, log logger.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Dsn), &gorm.Config{
		Logger: NewGormLogger(log),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   cfg.Prefix,
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cfg.Dsn, err)
	}
	if err := db.AutoMigrate(&RewriteRecord{}); err != nil {
		return nil, fmt.Errorf("migrate rewrite history: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Append 落库一条监听事件
func (s *Store) Append(evt model.Event) error {
	rec := RewriteRecord{
		ID:        uuid.NewString(),
		Session:   string(evt.Session),
		Type:      string(evt.Type),
		Original:  evt.Original,
		Result:    evt.Result,
		RuleIndex: evt.Rule,
		Error:     evt.Error,
		CreatedAt: time.UnixMilli(evt.Timestamp),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("append rewrite record: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近 limit 条记录
func (s *Store) Recent(limit int) ([]RewriteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []RewriteRecord
	if err := s.db.Order("created_at desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query rewrite history: %w", err)
	}
	return recs, nil
}

// CountBySession 统计某会话已落库的事件数
func (s *Store) CountBySession(session model.SessionID) (int64, error) {
	var n int64
	if err := s.db.Model(&RewriteRecord{}).Where("session = ?", string(session)).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Close 关闭底层数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
