package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"urlclip/internal/logger"
	"urlclip/pkg/model"
)

// ErrNoRules 所有候选目录中都找不到规则文件
var ErrNoRules = errors.New("no rules json file found")

// ruleSearchDirs 规则文件候选目录，按优先级排列：
// 可执行文件旁的 configs 目录优先，其次是工作目录下的 configs
func ruleSearchDirs() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "configs"))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(wd, "configs"))
	}
	seen := map[string]bool{}
	uniq := dirs[:0]
	for _, d := range dirs {
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	return uniq
}

// DefaultRulesDir 生成示例规则时使用的首选目录
func DefaultRulesDir() string {
	dirs := ruleSearchDirs()
	if len(dirs) == 0 {
		return "configs"
	}
	return dirs[0]
}

// findRulesFile 返回候选目录中第一个 *.json 文件（同目录内按文件名排序）
func findRulesFile(dirs []string, log logger.Logger) string {
	for _, dir := range dirs {
		log.Debug("查找规则文件", "dir", dir)
		matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		log.Info("找到规则文件", "path", matches[0])
		return matches[0]
	}
	return ""
}

// LoadRules 在标准位置查找并加载规则文件，返回规则及其来源路径
func LoadRules(log logger.Logger) ([]model.Rule, string, error) {
	dirs := ruleSearchDirs()
	path := findRulesFile(dirs, log)
	if path == "" {
		log.Warn("未找到任何规则文件", "dirs", dirs)
		return nil, "", ErrNoRules
	}
	rules, err := LoadRulesFile(path, log)
	if err != nil {
		return nil, path, err
	}
	return rules, path, nil
}

// LoadRulesFile 解析单个规则文件。格式为 JSON 数组：
// [{"domains": ["example.com"], "suffix": "?ref=123"}, ...]
// 不完整的记录会被跳过并记录警告，而不是让整次加载失败。
func LoadRulesFile(path string, log logger.Logger) ([]model.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid rules json: %s", path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("rules json must be an array: %s", path)
	}

	var rules []model.Rule
	index := 0
	root.ForEach(func(_, item gjson.Result) bool {
		var r model.Rule
		item.Get("domains").ForEach(func(_, d gjson.Result) bool {
			r.Domains = append(r.Domains, d.String())
			return true
		})
		r.Suffix = item.Get("suffix").String()
		if !r.Valid() {
			log.Warn("跳过不完整的规则记录", "index", index, "raw", item.Raw)
		} else {
			rules = append(rules, r)
		}
		index++
		return true
	})
	log.Info("规则加载完成", "path", path, "count", len(rules))
	return rules, nil
}

// WriteDefaultRules 在 dir 下生成示例规则文件，返回生成的路径
func WriteDefaultRules(dir string) (string, error) {
	out := "[]"
	out, _ = sjson.Set(out, "0.domains.0", "example.com")
	out, _ = sjson.Set(out, "0.suffix", "?ref=your-id")
	out, _ = sjson.Set(out, "1.domains.0", "amazon.")
	out, _ = sjson.Set(out, "1.domains.1", "amzn.")
	out, _ = sjson.Set(out, "1.suffix", "?tag=your-tag-21")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
