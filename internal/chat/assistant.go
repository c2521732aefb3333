package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/FundDash/internal/nlp"
	"github.com/LJTian/FundDash/internal/storage"
	"github.com/LJTian/FundDash/internal/trace"
	"go.uber.org/zap"
)

const systemPrompt = `You are a knowledgeable financial AI assistant that helps users understand stock performance and market trends.

Your role:
- Analyze the provided stock data and news information
- Explain price movements and their potential causes
- Provide insights based on recent news sentiment
- Give clear, actionable financial analysis
- Always mention that this is for informational purposes only

Be concise but comprehensive in your analysis. Focus on connecting news events to stock price movements when possible.`

// FallbackResponse 所有提供方都失败时的固定回答
const FallbackResponse = "I'm sorry, I encountered an error while processing your request. Please try asking about a specific stock ticker (e.g., 'How is AAPL doing today?' or 'What's the latest news on TSLA?')."

// ProviderFallback 兜底回答使用的提供方名
const ProviderFallback = "fallback"

// QueryLogger 记录问答
type QueryLogger interface {
	LogQuery(ctx context.Context, q *storage.UserQuery) error
}

// Answer 一次问答的结果
type Answer struct {
	Response        string   `json:"response"`
	ResponseTimeMs  int64    `json:"responseTimeMs"`
	Provider        string   `json:"provider"`
	Model           string   `json:"model,omitempty"`
	TickersAnalyzed []string `json:"tickersAnalyzed"`
	Error           string   `json:"error,omitempty"`
}

type Assistant struct {
	providers []Provider
	context   *ContextBuilder
	logger    QueryLogger
	now       func() time.Time
}

func NewAssistant(providers []Provider, cb *ContextBuilder, logger QueryLogger) *Assistant {
	return &Assistant{providers: providers, context: cb, logger: logger, now: time.Now}
}

// Providers 已启用的提供方名
func (a *Assistant) Providers() []string {
	out := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		out = append(out, p.Name())
	}
	return out
}

// Ask 按顺序尝试各提供方，全部失败时返回兜底回答（不返回错误）
func (a *Assistant) Ask(ctx context.Context, question string) Answer {
	start := a.now()
	tickers := ExtractTickers(question)
	if tickers == nil {
		tickers = []string{}
	}
	zap.S().Infof("chat question tickers=%v", tickers)

	ctx, span := trace.StartSpan(ctx, "chat.ask")
	var spanErr error
	defer func() { trace.End(span, spanErr) }()

	contextText := noTickerHint
	if a.context != nil && len(tickers) > 0 {
		contextText = a.context.Build(ctx, tickers)
	}
	prompt := fmt.Sprintf("User Question: %s\n\nContext Data:\n%s", question, contextText)

	ans := Answer{TickersAnalyzed: tickers}
	var errs []error
	for _, p := range a.providers {
		text, err := p.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			zap.S().Warnf("chat provider %s failed: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		ans.Response = text
		ans.Provider = p.Name()
		ans.Model = p.Model()
		break
	}

	if ans.Provider == "" {
		spanErr = errors.Join(errs...)
		if spanErr == nil {
			spanErr = errors.New("no chat provider configured")
		}
		zap.S().Errorf("chat failed, using fallback: %v", spanErr)
		ans.Response = FallbackResponse
		ans.Provider = ProviderFallback
		ans.Error = "Processing failed"
	}
	ans.ResponseTimeMs = a.now().Sub(start).Milliseconds()

	if a.logger != nil && ans.Provider != ProviderFallback {
		err := a.logger.LogQuery(ctx, &storage.UserQuery{
			Question:       question,
			Response:       ans.Response,
			Provider:       ans.Provider,
			ResponseTimeMs: ans.ResponseTimeMs,
		})
		if err != nil {
			zap.S().Warnf("log chat query: %v", err)
		}
	}
	return ans
}

// Summary 仅基于情绪分的新闻摘要
type Summary struct {
	Ticker         string   `json:"ticker"`
	ArticleCount   int      `json:"articleCount"`
	AvgSentiment   float64  `json:"avgSentiment"`
	SentimentLabel string   `json:"sentimentLabel"`
	Headlines      []string `json:"headlines"`
	Text           string   `json:"text"`
}

// Summarize 汇总文章情绪，附前三个标题
func Summarize(ticker string, articles []storage.NewsArticle) Summary {
	s := Summary{Ticker: ticker, ArticleCount: len(articles), Headlines: []string{}}
	if len(articles) == 0 {
		s.SentimentLabel = nlp.Neutral
		s.Text = fmt.Sprintf("No recent news found for %s.", ticker)
		return s
	}

	var total float64
	var scored int
	for i, a := range articles {
		if a.SentimentScore != nil {
			total += *a.SentimentScore
			scored++
		}
		if i < 3 {
			s.Headlines = append(s.Headlines, a.Title)
		}
	}
	if scored > 0 {
		s.AvgSentiment = total / float64(scored)
	}
	s.SentimentLabel = nlp.Label(s.AvgSentiment)
	s.Text = fmt.Sprintf("%s: %d recent articles, overall %s sentiment (%.1f%%). Top headlines: %s",
		ticker, len(articles), s.SentimentLabel, s.AvgSentiment*100, strings.Join(s.Headlines, "; "))
	return s
}
