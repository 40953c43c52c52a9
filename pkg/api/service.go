package api

import (
	"urlclip/internal/config"
	"urlclip/internal/logger"
	"urlclip/internal/service"
	"urlclip/internal/storage"
	"urlclip/pkg/model"
)

// Service 服务接口
type Service interface {
	// Run 运行一轮监听会话，返回是否请求整体重启
	Run() (bool, error)

	// Stop 协作式停止当前会话
	Stop()

	// Stats 获取当前会话统计信息
	Stats() model.WatchStats
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, rules []model.Rule, store *storage.Store, l logger.Logger) Service {
	return service.New(cfg, rules, store, l)
}
