package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		question string
		want     []string
	}{
		{"How is AAPL doing today?", []string{"AAPL"}},
		{"Compare TSLA and MSFT and NVDA", []string{"TSLA", "MSFT"}},
		{"Is the SPY ETF a good buy, I wonder? SPY again", []string{"SPY"}},
		{"what's happening in the market", nil},
		{"Tell me about AI stocks and the CEO of QQQ", []string{"QQQ"}},
		{"TOOLONG tickers are ignored", nil},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTickers(tt.question))
		})
	}
}
