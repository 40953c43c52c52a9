package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlclip/pkg/model"
)

var testRules = []model.Rule{
	{Domains: []string{"example.com"}, Suffix: "?ref=123"},
	{Domains: []string{"path.test"}, Suffix: "/promo/456"},
	{Domains: []string{"full.url"}, Suffix: "https://override.test/xyz"},
	{Domains: []string{"fallback.test"}, Suffix: "-suffix"},
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		suffix string
		url    string
		want   Strategy
	}{
		{"absolute http", "http://other.test/x", "https://example.com/p", StrategyAbsolute},
		{"absolute https", "https://other.test/x", "https://example.com/p", StrategyAbsolute},
		{"path", "/promo", "https://example.com/p", StrategyPath},
		{"query", "?ref=1", "https://example.com/p", StrategyQuery},
		{"concat", "-suffix", "https://example.com/p", StrategyConcat},
		{"amazon long", "?tag=aff-21", "https://www.amazon.es/dp/B0ABC", StrategyAmazon},
		{"amazon short", "?tag=aff-21", "https://amzn.eu/d/XYZ", StrategyAmazon},
		{"amazon subdomain", "?tag=aff-21", "https://smile.amazon.com/dp/B0ABC", StrategyAmazon},
		{"amazon beats absolute", "https://other.test/x", "https://amazon.com/dp/B0ABC", StrategyAmazon},
		{"not amazon lookalike", "?ref=1", "https://notamazon.example/p", StrategyQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.suffix, tt.url))
		})
	}
}

func TestRewriteQueryMerge(t *testing.T) {
	t.Run("no existing params", func(t *testing.T) {
		got := Rewrite("https://example.com/page", testRules)
		assert.Equal(t, "https://example.com/page?ref=123", got)
	})

	t.Run("existing params keep position", func(t *testing.T) {
		got := Rewrite("https://example.com/page?foo=bar", testRules)
		assert.Equal(t, "https://example.com/page?foo=bar&ref=123", got)
	})

	t.Run("unsorted keys keep order", func(t *testing.T) {
		got := Rewrite("https://example.com/page?z=1&a=2", testRules)
		assert.Equal(t, "https://example.com/page?z=1&a=2&ref=123", got)
	})

	t.Run("idempotent on merged key", func(t *testing.T) {
		once := Rewrite("https://example.com/page?foo=bar", testRules)
		twice := Rewrite(once, testRules)
		assert.Equal(t, once, twice)
	})

	t.Run("overwrite replaces all values", func(t *testing.T) {
		rules := []model.Rule{{Domains: []string{"example.com"}, Suffix: "?a=9"}}
		got := Rewrite("https://example.com/p?a=1&a=2&b=3", rules)
		assert.Equal(t, "https://example.com/p?a=9&b=3", got)
	})

	t.Run("valueless token becomes empty value", func(t *testing.T) {
		rules := []model.Rule{{Domains: []string{"example.com"}, Suffix: "?flag"}}
		got := Rewrite("https://example.com/p", rules)
		assert.Equal(t, "https://example.com/p?flag=", got)
	})

	t.Run("dangling question mark", func(t *testing.T) {
		got := Rewrite("https://example.com/page?", testRules)
		assert.Equal(t, "https://example.com/page?ref=123", got)
	})

	t.Run("fragment preserved", func(t *testing.T) {
		got := Rewrite("https://example.com/page#frag", testRules)
		assert.Equal(t, "https://example.com/page?ref=123#frag", got)
	})
}

func TestRewritePathAppend(t *testing.T) {
	withSlash := Rewrite("http://path.test/dir/", testRules)
	withoutSlash := Rewrite("http://path.test/dir", testRules)
	assert.Equal(t, "http://path.test/dir/promo/456", withSlash)
	assert.Equal(t, withSlash, withoutSlash)

	t.Run("query survives", func(t *testing.T) {
		got := Rewrite("http://path.test/dir/?k=v", testRules)
		assert.Equal(t, "http://path.test/dir/promo/456?k=v", got)
	})
}

func TestRewriteAbsoluteOverride(t *testing.T) {
	got := Rewrite("https://full.url/anything?param=1", testRules)
	assert.Equal(t, "https://override.test/xyz", got)
}

func TestRewritePlainConcat(t *testing.T) {
	assert.Equal(t, "https://fallback.test/page-suffix",
		Rewrite("https://fallback.test/page", testRules))
	// 纯拼接对整个 URL 去尾斜杠，而不只是路径
	assert.Equal(t, "https://fallback.test/page-suffix",
		Rewrite("https://fallback.test/page/", testRules))
}

func TestRewriteAmazonAffiliate(t *testing.T) {
	rules := []model.Rule{{Domains: []string{"amazon", "amzn"}, Suffix: "?tag=aff-21"}}

	t.Run("adds tag", func(t *testing.T) {
		got := Rewrite("https://www.amazon.es/dp/B0ABC", rules)
		assert.Equal(t, "https://www.amazon.es/dp/B0ABC?tag=aff-21", got)
	})

	t.Run("overwrites existing tag", func(t *testing.T) {
		got := Rewrite("https://www.amazon.es/dp/B0ABC?tag=other-00&th=1", rules)
		assert.Equal(t, "https://www.amazon.es/dp/B0ABC?tag=aff-21&th=1", got)
	})

	t.Run("short link", func(t *testing.T) {
		got := Rewrite("https://amzn.eu/d/XYZ", rules)
		assert.Equal(t, "https://amzn.eu/d/XYZ?tag=aff-21", got)
	})
}

func TestRewriteDispatch(t *testing.T) {
	t.Run("empty url", func(t *testing.T) {
		assert.Equal(t, "", Rewrite("", testRules))
	})

	t.Run("empty rules", func(t *testing.T) {
		url := "https://example.com/page"
		assert.Equal(t, url, Rewrite(url, nil))
	})

	t.Run("unknown domain unchanged", func(t *testing.T) {
		url := "https://unknown.test/path"
		assert.Equal(t, url, Rewrite(url, testRules))
	})

	t.Run("first matching rule wins", func(t *testing.T) {
		rules := []model.Rule{
			{Domains: []string{"example.com"}, Suffix: "?first=1"},
			{Domains: []string{"example.com"}, Suffix: "?second=2"},
		}
		got := Rewrite("https://example.com/p", rules)
		assert.Equal(t, "https://example.com/p?first=1", got)
		assert.NotContains(t, got, "second")
	})

	t.Run("substring containment", func(t *testing.T) {
		rules := []model.Rule{{Domains: []string{"ample.co"}, Suffix: "?ref=1"}}
		got := Rewrite("https://example.com/p", rules)
		assert.Equal(t, "https://example.com/p?ref=1", got)
	})

	t.Run("host match is case insensitive", func(t *testing.T) {
		rules := []model.Rule{{Domains: []string{"Example.COM"}, Suffix: "?ref=1"}}
		got := Rewrite("https://EXAMPLE.com/p", rules)
		assert.Contains(t, got, "ref=1")
	})

	t.Run("scheme agnostic", func(t *testing.T) {
		got := Rewrite("ftp://example.com/file", testRules)
		assert.Equal(t, "ftp://example.com/file?ref=123", got)
	})

	t.Run("unparseable url unchanged", func(t *testing.T) {
		raw := "http://exa mple.com/%zz"
		assert.Equal(t, raw, Rewrite(raw, testRules))
	})
}

func TestEngine(t *testing.T) {
	e := New(testRules)

	res := e.Rewrite("https://example.com/page")
	require.Equal(t, 0, res.Rule)
	assert.Equal(t, "https://example.com/page?ref=123", res.URL)

	res = e.Rewrite("https://unknown.test/p")
	assert.Equal(t, -1, res.Rule)
	assert.Equal(t, "https://unknown.test/p", res.URL)

	e.Update([]model.Rule{{Domains: []string{"unknown.test"}, Suffix: "?x=1"}})
	res = e.Rewrite("https://unknown.test/p")
	assert.Equal(t, 0, res.Rule)
}
