package model

import "strings"

type SessionID string
type EventType string

const (
	EventRewritten EventType = "rewritten"
	EventSkipped   EventType = "skipped"
	EventReadFail  EventType = "read_failed"
	EventWriteFail EventType = "write_failed"
	EventStalled   EventType = "stalled"
)

// Rule URL 改写规则：域名子串集合 + 后缀规格
type Rule struct {
	Domains []string `json:"domains"`
	Suffix  string   `json:"suffix"`
}

// Valid 判断规则是否完整（域名集合与后缀均非空）
func (r Rule) Valid() bool {
	if len(r.Domains) == 0 || r.Suffix == "" {
		return false
	}
	for _, d := range r.Domains {
		if strings.TrimSpace(d) == "" {
			return false
		}
	}
	return true
}

// RuleSet 有序规则集，排列顺序即优先级
type RuleSet struct {
	Rules []Rule `json:"rules"`
}

// WatchStats 监听会话统计信息
type WatchStats struct {
	Total     int64         `json:"total"`
	Rewritten int64         `json:"rewritten"`
	ByRule    map[int]int64 `json:"byRule"`
}

// Event 监听循环产生的事件
type Event struct {
	Type      EventType `json:"type"`
	Session   SessionID `json:"session"`
	Original  string    `json:"original"`
	Result    string    `json:"result"`
	Rule      *int      `json:"rule"`
	Error     string    `json:"error,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
