package rewrite

import (
	"net/url"
	"strings"
)

// 查询串有序编解码。net/url 的 Values.Encode 会按键名排序，
// 这里要求保持原有键位次序、新键追加在尾部，因此手工维护键序。

type queryParam struct {
	key    string
	values []string
}

func parseQuery(raw string) []queryParam {
	var params []queryParam
	index := map[string]int{}
	for _, token := range strings.Split(raw, "&") {
		if token == "" {
			continue
		}
		k, v, _ := strings.Cut(token, "=")
		if dk, err := url.QueryUnescape(k); err == nil {
			k = dk
		}
		if dv, err := url.QueryUnescape(v); err == nil {
			v = dv
		}
		if i, ok := index[k]; ok {
			params[i].values = append(params[i].values, v)
			continue
		}
		index[k] = len(params)
		params = append(params, queryParam{key: k, values: []string{v}})
	}
	return params
}

func encodeQuery(params []queryParam) string {
	var b strings.Builder
	for _, p := range params {
		for _, v := range p.values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(p.key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// mergeQuery 将后缀规格中的参数合并进现有查询串。
// 同名键整体覆盖为单值，新键按出现顺序追加；无 "=" 的令牌视为空值键。
func mergeQuery(raw, spec string) string {
	params := parseQuery(raw)
	index := map[string]int{}
	for i := range params {
		index[params[i].key] = i
	}
	for _, token := range strings.Split(spec, "&") {
		if token == "" {
			continue
		}
		k, v, _ := strings.Cut(token, "=")
		if i, ok := index[k]; ok {
			params[i].values = []string{v}
			continue
		}
		index[k] = len(params)
		params = append(params, queryParam{key: k, values: []string{v}})
	}
	return encodeQuery(params)
}
