package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LJTian/FundDash/internal/config"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGroqProviderComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gk", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  AAPL looks weak.  "}}]}`))
	}))
	defer srv.Close()

	p := NewGroqProvider("gk", srv.URL+"/", "llama3-70b-8192", 1000, 0.7)
	out, err := p.Complete(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "AAPL looks weak.", out)
	assert.Equal(t, "llama3-70b-8192", got["model"])
	assert.EqualValues(t, 1000, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestGroqProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer bad":
			http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
		default:
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}
	}))
	defer srv.Close()

	_, err := NewGroqProvider("bad", srv.URL, "m", 10, 0).Complete(context.Background(), "", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = NewGroqProvider("ok", srv.URL, "m", 10, 0).Complete(context.Background(), "", "q")
	require.Error(t, err)
}

func TestAnthropicProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("X-Api-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Markets are mixed."}],
			"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("ak", "claude-test", 100, 0.5, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	out, err := p.Complete(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "Markets are mixed.", out)
	assert.Equal(t, "anthropic", p.Name())
}

func TestGeminiProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"SPY is flat."}]}}]}`))
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), &genai.ClientConfig{
		APIKey:      "gk",
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	}, "gemini-test", 100, 0.7)
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "SPY is flat.", out)
}

func TestProvidersFromConfigSkipsMissingKeys(t *testing.T) {
	cfg := config.ChatConfig{
		Providers:       []string{"groq", "anthropic", "gemini"},
		AnthropicAPIKey: "ak",
		AnthropicModel:  "claude-test",
		GroqBaseURL:     "https://api.groq.com/openai/v1",
		MaxTokens:       100,
	}
	ps := ProvidersFromConfig(context.Background(), cfg)
	require.Len(t, ps, 1)
	assert.Equal(t, "anthropic", ps[0].Name())
	assert.Equal(t, "claude-test", ps[0].Model())
}
