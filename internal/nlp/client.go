package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/FundDash/internal/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	// 推理接口只取前 512 个字符
	maxInputRunes    = 512
	maxResponseBytes = 512 * 1024
)

var (
	// ErrNotConfigured 未配置 API key
	ErrNotConfigured = errors.New("hugging face api key not configured")
	// ErrAllModelsFailed 候选模型全部失败
	ErrAllModelsFailed = errors.New("all models failed")
)

// 按优先级排列，前一个不可用（加载中 / 下线 / 限流）时尝试下一个
var (
	DefaultSentimentModels = []string{
		"cardiffnlp/twitter-roberta-base-sentiment",
		"distilbert-base-uncased-finetuned-sst-2-english",
		"nlptown/bert-base-multilingual-uncased-sentiment",
	}
	DefaultNERModels = []string{
		"ProsusAI/finbert-ner",
		"dbmdz/bert-large-cased-finetuned-conll03-english",
		"dslim/bert-base-NER",
	}
)

const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// Sentiment 模型给出的情绪，Score 在 [-1, 1]
type Sentiment struct {
	Label      string  `json:"sentiment"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
}

// Entity 命名实体
type Entity struct {
	Text       string  `json:"entity"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// Client Hugging Face Inference API 客户端
type Client struct {
	baseURL         string
	apiKey          string
	httpClient      *http.Client
	limiter         *rate.Limiter
	sentimentModels []string
	nerModels       []string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRequestInterval 两次调用之间的最小间隔，<=0 表示不限速
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithSentimentModels(models ...string) Option {
	return func(c *Client) {
		c.sentimentModels = models
	}
}

func WithNERModels(models ...string) Option {
	return func(c *Client) {
		c.nerModels = models
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:         DefaultBaseURL,
		apiKey:          strings.TrimSpace(apiKey),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		limiter:         rate.NewLimiter(rate.Every(time.Second), 1),
		sentimentModels: DefaultSentimentModels,
		nerModels:       DefaultNERModels,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Sentiment 依次尝试情绪模型，返回第一个有效结果
func (c *Client) Sentiment(ctx context.Context, text string) (*Sentiment, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	ctx, span := trace.StartSpan(ctx, "nlp.sentiment")
	var err error
	defer func() { trace.End(span, err) }()

	if err = c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	input := truncateRunes(text, maxInputRunes)
	for _, model := range c.sentimentModels {
		body, callErr := c.infer(ctx, model, input)
		if callErr != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
				return nil, err
			}
			zap.S().Warnf("hf sentiment %s: %v", model, callErr)
			continue
		}
		preds, decodeErr := decodePredictions(body)
		if decodeErr != nil || len(preds) == 0 {
			zap.S().Warnf("hf sentiment %s: no predictions", model)
			continue
		}

		top := preds[0]
		label := mapLabel(top.Label)
		score := 0.0
		switch label {
		case Positive:
			score = top.Score
		case Negative:
			score = -top.Score
		}
		span.SetAttributes(attribute.String("nlp.model", model))
		return &Sentiment{Label: label, Score: score, Confidence: top.Score, Model: model}, nil
	}
	err = ErrAllModelsFailed
	return nil, err
}

// Entities 依次尝试 NER 模型；空数组也视为成功
func (c *Client) Entities(ctx context.Context, text string) ([]Entity, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	ctx, span := trace.StartSpan(ctx, "nlp.entities")
	var err error
	defer func() { trace.End(span, err) }()

	if err = c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	input := truncateRunes(text, maxInputRunes)
	for _, model := range c.nerModels {
		body, callErr := c.infer(ctx, model, input)
		if callErr != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
				return nil, err
			}
			zap.S().Warnf("hf ner %s: %v", model, callErr)
			continue
		}
		var raw []struct {
			Word        string   `json:"word"`
			Entity      string   `json:"entity"`
			EntityGroup string   `json:"entity_group"`
			Label       string   `json:"label"`
			Score       *float64 `json:"score"`
			Start       int      `json:"start"`
			End         int      `json:"end"`
		}
		if decodeErr := json.Unmarshal(body, &raw); decodeErr != nil {
			zap.S().Warnf("hf ner %s: decode: %v", model, decodeErr)
			continue
		}

		out := make([]Entity, 0, len(raw))
		for _, r := range raw {
			e := Entity{
				Text:       firstNonEmpty(r.Word, r.Entity),
				Label:      firstNonEmpty(r.EntityGroup, r.Entity, r.Label),
				Confidence: 0.5,
				Start:      r.Start,
				End:        r.End,
			}
			if r.Score != nil && *r.Score > 0 {
				e.Confidence = *r.Score
			}
			out = append(out, e)
		}
		span.SetAttributes(attribute.String("nlp.model", model), attribute.Int("nlp.entities", len(out)))
		return out, nil
	}
	err = ErrAllModelsFailed
	return nil, err
}

func (c *Client) infer(ctx context.Context, model, input string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs":  input,
		"options": map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+model, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("model loading: status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("model not found: status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// decodePredictions 兼容 [{label,score}] 与 [[{label,score}]] 两种返回，按分数降序
func decodePredictions(body []byte) ([]prediction, error) {
	var nested [][]prediction
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return sortPredictions(nested[0]), nil
	}
	var flat []prediction
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	return sortPredictions(flat), nil
}

func sortPredictions(p []prediction) []prediction {
	sort.SliceStable(p, func(i, j int) bool { return p[i].Score > p[j].Score })
	return p
}

// mapLabel 统一不同模型的标签：POSITIVE/NEGATIVE、LABEL_0..2、1-5 stars
func mapLabel(raw string) string {
	label := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasSuffix(label, "STAR") || strings.HasSuffix(label, "STARS") {
		switch label[0] {
		case '1', '2':
			return Negative
		case '4', '5':
			return Positive
		default:
			return Neutral
		}
	}
	switch {
	case strings.Contains(label, "POS") || label == "LABEL_2":
		return Positive
	case strings.Contains(label, "NEG") || label == "LABEL_0":
		return Negative
	default:
		return Neutral
	}
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
