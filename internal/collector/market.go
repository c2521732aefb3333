package collector

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	MarketOpen       = "open"
	MarketClosed     = "closed"
	MarketPreMarket  = "pre-market"
	MarketAfterHours = "after-hours"
)

// MarketStatus 美股交易状态（纽约时间）
type MarketStatus struct {
	Market     string            `json:"market"`
	Status     string            `json:"status"`
	ServerTime time.Time         `json:"serverTime"`
	NextOpen   *time.Time        `json:"nextOpen,omitempty"`
	NextClose  *time.Time        `json:"nextClose,omitempty"`
	Exchanges  map[string]string `json:"exchanges,omitempty"`
}

// 未列出的代码默认 NASDAQ
var exchangeByTicker = map[string]string{
	"TSLA":  "NASDAQ",
	"AAPL":  "NASDAQ",
	"MSFT":  "NASDAQ",
	"GOOGL": "NASDAQ",
	"AMZN":  "NASDAQ",
	"META":  "NASDAQ",
	"NFLX":  "NASDAQ",
	"NVDA":  "NASDAQ",
	"QQQ":   "NASDAQ",
	"SPY":   "NYSEARCA",
	"VTI":   "NYSEARCA",
	"ARKK":  "NYSEARCA",
	"XLF":   "NYSEARCA",
}

var tickerRe = regexp.MustCompile(`^[A-Z]{1,5}$`)

// IsValidTicker 1-5 位大写字母
func IsValidTicker(ticker string) bool {
	return tickerRe.MatchString(ticker)
}

// ExchangeFor 返回代码所在交易所
func ExchangeFor(ticker string) string {
	if ex, ok := exchangeByTicker[strings.ToUpper(ticker)]; ok {
		return ex
	}
	return "NASDAQ"
}

const googleFinanceBase = "https://www.google.com/finance/quote/"

// QuoteURL 返回 Google Finance 行情页地址，例如 .../quote/SPY:NYSEARCA
func QuoteURL(ticker string) string {
	t := strings.ToUpper(ticker)
	return fmt.Sprintf("%s%s:%s", googleFinanceBase, t, ExchangeFor(t))
}

func newYorkLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// 回退到固定 UTC-5，夏令时期间会偏差一小时
		loc = time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// IsTradingWeekday 仅按工作日粗略判断，不处理美股假期
func IsTradingWeekday(t time.Time) bool {
	switch t.In(newYorkLocation()).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// MarketStatusAt 计算 t 时刻的美股状态：
// 盘前 04:00–09:30，盘中 09:30–16:00，盘后 16:00–20:00，其余及周末为休市
func MarketStatusAt(t time.Time) MarketStatus {
	loc := newYorkLocation()
	nt := t.In(loc)

	st := MarketStatus{
		Market:     "US",
		Status:     MarketClosed,
		ServerTime: t,
		Exchanges:  map[string]string{"nasdaq": MarketClosed, "nyse": MarketClosed},
	}

	min := nt.Hour()*60 + nt.Minute()
	if IsTradingWeekday(nt) {
		switch {
		case min >= 9*60+30 && min < 16*60:
			st.Status = MarketOpen
		case min >= 4*60 && min < 9*60+30:
			st.Status = MarketPreMarket
		case min >= 16*60 && min < 20*60:
			st.Status = MarketAfterHours
		}
	}
	for k := range st.Exchanges {
		st.Exchanges[k] = st.Status
	}

	if st.Status == MarketOpen {
		c := time.Date(nt.Year(), nt.Month(), nt.Day(), 16, 0, 0, 0, loc)
		st.NextClose = &c
	} else {
		o := nextOpen(nt)
		st.NextOpen = &o
	}
	return st
}

func nextOpen(nt time.Time) time.Time {
	loc := nt.Location()
	day := time.Date(nt.Year(), nt.Month(), nt.Day(), 9, 30, 0, 0, loc)
	if !nt.Before(day) {
		day = day.AddDate(0, 0, 1)
	}
	for !IsTradingWeekday(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
