package rewrite

import (
	"net/url"
	"strings"

	"urlclip/pkg/model"
)

type Strategy int

const (
	StrategyConcat Strategy = iota
	StrategyAbsolute
	StrategyPath
	StrategyQuery
	StrategyAmazon
)

func (s Strategy) String() string {
	switch s {
	case StrategyAbsolute:
		return "absolute"
	case StrategyPath:
		return "path"
	case StrategyQuery:
		return "query"
	case StrategyAmazon:
		return "amazon"
	default:
		return "concat"
	}
}

// 亚马逊长短域名集合，命中后无条件走 tag 注入策略
var amazonDomains = []string{
	"amazon.com", "amazon.es", "amazon.co.uk", "amazon.de", "amazon.fr",
	"amazon.it", "amazon.ca", "amazon.com.au", "amazon.co.jp", "amazon.in",
	"amzn.to", "amzn.eu", "a.co",
}

type Engine struct {
	rules []model.Rule
}

func New(rules []model.Rule) *Engine { return &Engine{rules: rules} }

func (e *Engine) Update(rules []model.Rule) { e.rules = rules }

type Result struct {
	URL  string
	Rule int
}

func (e *Engine) Rewrite(rawURL string) Result {
	out, idx := RewriteWithRule(rawURL, e.rules)
	return Result{URL: out, Rule: idx}
}

func Rewrite(rawURL string, rules []model.Rule) string {
	out, _ := RewriteWithRule(rawURL, rules)
	return out
}

func RewriteWithRule(rawURL string, rules []model.Rule) (string, int) {
	if rawURL == "" || len(rules) == 0 {
		return rawURL, -1
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, -1
	}
	host := strings.ToLower(u.Host)
	for i := range rules {
		if !matchHost(host, rules[i].Domains) {
			continue
		}
		s := Classify(rules[i].Suffix, rawURL)
		return Apply(s, u, rules[i].Suffix, rawURL), i
	}
	return rawURL, -1
}

func matchHost(host string, domains []string) bool {
	for _, d := range domains {
		if d == "" {
			continue
		}
		if strings.Contains(host, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

func Classify(suffix, rawURL string) Strategy {
	if isAmazonURL(rawURL) {
		return StrategyAmazon
	}
	if strings.HasPrefix(suffix, "http://") || strings.HasPrefix(suffix, "https://") {
		return StrategyAbsolute
	}
	if strings.HasPrefix(suffix, "/") {
		return StrategyPath
	}
	if strings.HasPrefix(suffix, "?") {
		return StrategyQuery
	}
	return StrategyConcat
}

func isAmazonURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	for _, d := range amazonDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func Apply(s Strategy, u *url.URL, suffix, original string) string {
	switch s {
	case StrategyAbsolute:
		return suffix
	case StrategyPath:
		return applyPath(u, suffix)
	case StrategyQuery:
		return applyQuery(u, strings.TrimLeft(suffix, "?"))
	case StrategyAmazon:
		tag := strings.ReplaceAll(strings.TrimLeft(suffix, "?"), "tag=", "")
		return applyQuery(u, "tag="+tag)
	default:
		return strings.TrimRight(original, "/") + suffix
	}
}

func applyPath(u *url.URL, suffix string) string {
	u2 := *u
	raw := strings.TrimRight(u.EscapedPath(), "/") + suffix
	if p, err := url.PathUnescape(raw); err == nil {
		u2.Path = p
		u2.RawPath = raw
	} else {
		u2.Path = raw
		u2.RawPath = ""
	}
	return u2.String()
}

func applyQuery(u *url.URL, spec string) string {
	u2 := *u
	u2.RawQuery = mergeQuery(u.RawQuery, spec)
	u2.ForceQuery = false
	return u2.String()
}
