package chat

import "regexp"

// 问题中最多分析的代码数，避免上下文过长
const maxTickers = 2

var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// 常见的全大写非代码词
var stopWords = map[string]bool{
	"I": true, "A": true, "AI": true, "ETF": true, "ETFS": true, "CEO": true, "CFO": true,
	"USA": true, "US": true, "USD": true, "IPO": true, "GDP": true, "FED": true, "SEC": true,
	"EPS": true, "PE": true, "OK": true, "IS": true, "THE": true, "AND": true, "OR": true,
	"NEWS": true, "WHAT": true, "HOW": true, "WHY": true, "API": true, "YTD": true,
}

// ExtractTickers 取出问题中的候选代码，去重、过滤常见词，最多 maxTickers 个
func ExtractTickers(question string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range tickerPattern.FindAllString(question, -1) {
		if stopWords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		if len(out) == maxTickers {
			break
		}
	}
	return out
}
