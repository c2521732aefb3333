package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPolygonBaseURL = "https://api.polygon.io"
	// 免费档每分钟 5 次
	defaultPolygonRate = 5.0 / 60.0
)

// ErrNoData 接口返回成功但结果为空
var ErrNoData = errors.New("no data returned")

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("polygon %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// PolygonClient 访问 Polygon.io REST 接口：前一交易日聚合行情、日线、市场状态
type PolygonClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

type PolygonOption func(*PolygonClient)

func WithPolygonBaseURL(baseURL string) PolygonOption {
	return func(c *PolygonClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithPolygonHTTPClient(hc *http.Client) PolygonOption {
	return func(c *PolygonClient) {
		c.httpClient = hc
	}
}

// WithPolygonRateLimit 每秒请求数，<=0 表示不限速
func WithPolygonRateLimit(perSecond float64) PolygonOption {
	return func(c *PolygonClient) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func NewPolygonClient(apiKey string, opts ...PolygonOption) *PolygonClient {
	c := &PolygonClient{
		baseURL:    DefaultPolygonBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultPolygonRate), 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PolygonClient) Name() string {
	return "polygon"
}

// Configured 未配置 API key 时不发起请求
func (c *PolygonClient) Configured() bool {
	return c.apiKey != ""
}

type polygonAgg struct {
	C float64 `json:"c"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	O float64 `json:"o"`
	T int64   `json:"t"`
	V float64 `json:"v"`
}

type polygonAggsResponse struct {
	Status  string       `json:"status"`
	Results []polygonAgg `json:"results"`
}

// FetchQuote 使用前一交易日聚合数据：change = close - open
func (c *PolygonClient) FetchQuote(ctx context.Context, ticker string) (*Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !IsValidTicker(ticker) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}

	var resp polygonAggsResponse
	path := "/v2/aggs/ticker/" + ticker + "/prev"
	if err := c.get(ctx, path, url.Values{"adjusted": {"true"}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}

	r := resp.Results[0]
	change := r.C - r.O
	var pct float64
	if r.O != 0 {
		pct = change / r.O
	}
	return &Quote{
		Ticker:        ticker,
		Name:          ticker,
		Price:         r.C,
		Change:        change,
		ChangePercent: pct,
		Currency:      "USD",
		Timestamp:     time.UnixMilli(r.T),
		Source:        c.Name(),
	}, nil
}

// FetchHistory 返回最近 days 天（自然日）的日线收盘价，按日期升序
func (c *PolygonClient) FetchHistory(ctx context.Context, ticker string, days int) ([]PricePoint, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !IsValidTicker(ticker) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	if days <= 0 {
		days = 30
	}

	end := c.now().UTC()
	start := end.AddDate(0, 0, -days)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s", ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))

	var resp polygonAggsResponse
	params := url.Values{"adjusted": {"true"}, "sort": {"asc"}, "limit": {fmt.Sprint(days)}}
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}

	out := make([]PricePoint, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, PricePoint{
			Date:   time.UnixMilli(r.T).UTC().Format("2006-01-02"),
			Price:  r.C,
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Volume: r.V,
		})
	}
	return out, nil
}

// FetchMarketStatus 查询交易所实时状态
func (c *PolygonClient) FetchMarketStatus(ctx context.Context) (*MarketStatus, error) {
	var resp struct {
		Market     string            `json:"market"`
		ServerTime string            `json:"serverTime"`
		Exchanges  map[string]string `json:"exchanges"`
	}
	if err := c.get(ctx, "/v1/marketstatus/now", nil, &resp); err != nil {
		return nil, err
	}
	st := &MarketStatus{
		Market:    "US",
		Status:    resp.Market,
		Exchanges: resp.Exchanges,
	}
	if t, err := time.Parse(time.RFC3339, resp.ServerTime); err == nil {
		st.ServerTime = t
	} else {
		st.ServerTime = c.now()
	}
	// polygon 使用 extended-hours 表示盘前盘后，这里按当前时间细分
	if st.Status == "extended-hours" {
		st.Status = MarketStatusAt(st.ServerTime).Status
	}
	return st, nil
}

func (c *PolygonClient) get(ctx context.Context, path string, params url.Values, result any) error {
	if c.apiKey == "" {
		return errors.New("polygon: api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("polygon rate limit: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polygon %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := readLimit(resp.Body, 1<<20)
	if err != nil {
		return fmt.Errorf("read polygon %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: path, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode polygon %s: %w", path, err)
	}
	return nil
}
