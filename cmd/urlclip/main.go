package main

import (
	"errors"
	"fmt"
	"os"

	"urlclip/internal/config"
	"urlclip/internal/logger"
	"urlclip/internal/storage"
	"urlclip/internal/supervise"
	"urlclip/pkg/api"
)

// main 是剪贴板监听器入口
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "urlclip:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Level:    cfg.Log.Level,
		Writers:  cfg.Log.Writer,
		Filename: cfg.Log.File,
	})

	rules, rulesPath, err := config.LoadRules(log)
	if errors.Is(err, config.ErrNoRules) {
		// 首次启动没有规则文件时生成示例并直接加载，占位规则只影响示例域名
		rulesPath, err = config.WriteDefaultRules(config.DefaultRulesDir())
		if err != nil {
			return fmt.Errorf("write default rules: %w", err)
		}
		log.Warn("未找到规则文件，已生成示例，请按需编辑", "path", rulesPath)
		rules, err = config.LoadRulesFile(rulesPath, log)
	}
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	log.Info("规则就绪", "path", rulesPath, "count", len(rules))

	var store *storage.Store
	if cfg.History.Enabled {
		store, err = storage.Open(cfg.Sqlite, log)
		if err != nil {
			// 历史记录是锦上添花，打不开数据库不应阻止监听
			log.Err(err, "历史存储不可用，本次运行不落库")
			store = nil
		} else {
			defer store.Close()
		}
	}

	svc := api.NewService(cfg, rules, store, log)
	err = supervise.Run(svc.Run, supervise.Options{
		Max:   cfg.Restart.Max,
		Pause: cfg.Restart.Pause(),
	}, log)
	if errors.Is(err, supervise.ErrRestartLimit) {
		// 进程内重启次数用尽，换一个干净进程从头再来
		log.Warn("进程内重启次数用尽，尝试整进程重拉")
		if rerr := supervise.Relaunch(); rerr != nil {
			return fmt.Errorf("relaunch: %w", rerr)
		}
		return nil
	}
	return err
}
