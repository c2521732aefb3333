package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/FundDash/internal/config"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Provider 一个可用的大模型后端
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

var errEmptyResponse = errors.New("empty response")

// GroqProvider 走 OpenAI 兼容的 chat/completions 接口
type GroqProvider struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewGroqProvider(apiKey, baseURL, model string, maxTokens int, temperature float64) *GroqProvider {
	return &GroqProvider{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *GroqProvider) Name() string  { return "groq" }
func (p *GroqProvider) Model() string { return p.model }

func (p *GroqProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	body := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"temperature": p.temperature,
		"max_tokens":  p.maxTokens,
	}
	bb, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("groq http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", errors.New("no choices")
	}
	out := strings.TrimSpace(r.Choices[0].Message.Content)
	if out == "" {
		return "", errEmptyResponse
	}
	return out, nil
}

// AnthropicProvider Claude 消息接口
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewAnthropicProvider(apiKey, model string, maxTokens int, temperature float64, opts ...option.RequestOption) *AnthropicProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(p.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errEmptyResponse
	}
	return out, nil
}

// GeminiProvider Google Gemini
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewGeminiProvider(ctx context.Context, cc *genai.ClientConfig, model string, maxTokens int, temperature float64) (*GeminiProvider, error) {
	if cc.Backend == genai.BackendUnspecified {
		cc.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, model: model, temperature: temperature, maxTokens: maxTokens}, nil
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.model }

func (p *GeminiProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.temperature)),
		MaxOutputTokens: int32(p.maxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var sb strings.Builder
	if resp != nil {
		for _, c := range resp.Candidates {
			if c.Content == nil {
				continue
			}
			for _, part := range c.Content.Parts {
				if part != nil && part.Text != "" {
					sb.WriteString(part.Text)
				}
			}
			if sb.Len() > 0 {
				break
			}
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errEmptyResponse
	}
	return out, nil
}

// ProvidersFromConfig 按配置顺序构建提供方，缺少密钥的跳过
func ProvidersFromConfig(ctx context.Context, cfg config.ChatConfig) []Provider {
	var out []Provider
	for _, name := range cfg.Providers {
		switch name {
		case "groq":
			if cfg.GroqAPIKey == "" {
				continue
			}
			out = append(out, NewGroqProvider(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, cfg.MaxTokens, cfg.Temperature))
		case "anthropic":
			if cfg.AnthropicAPIKey == "" {
				continue
			}
			out = append(out, NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxTokens, cfg.Temperature))
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				continue
			}
			p, err := NewGeminiProvider(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey}, cfg.GeminiModel, cfg.MaxTokens, cfg.Temperature)
			if err != nil {
				zap.S().Warnf("gemini provider disabled: %v", err)
				continue
			}
			out = append(out, p)
		default:
			zap.S().Warnf("unknown chat provider %q", name)
		}
	}
	return out
}
