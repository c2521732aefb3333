package collector

import (
	"io"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// RandomUserAgent 每次请求随机挑一个 UA，降低被目标站点限流的概率
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

var nonPriceRe = regexp.MustCompile(`[^0-9.]`)

// ParsePrice 去掉货币符号与千分位，例如 "$1,234.56" -> 1234.56；无法解析返回 0
func ParsePrice(text string) float64 {
	v, err := strconv.ParseFloat(nonPriceRe.ReplaceAllString(text, ""), 64)
	if err != nil {
		return 0
	}
	return v
}

var changeRe = regexp.MustCompile(`([-+]?\d+\.?\d*)\s*\(([-+]?\d+\.?\d*)%\)`)

// ParseChange 解析 "+1.23 (+0.45%)"，返回涨跌额与小数形式的涨跌幅
func ParseChange(text string) (change, percent float64) {
	m := changeRe.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if m == nil {
		return 0, 0
	}
	change, _ = strconv.ParseFloat(m[1], 64)
	p, _ := strconv.ParseFloat(m[2], 64)
	return change, p / 100
}

// absoluteURL 将站内相对链接补全为绝对地址
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

var publishedLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"Jan 2, 2006 3:04 PM MST",
	"Jan 2, 2006 3:04 p.m. MST",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// parsePublished 尝试常见日期格式，失败时返回 now
func parsePublished(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return now
}

func readLimit(r io.Reader, n int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, n))
}
