package collector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	assert.InDelta(t, 1234.56, ParsePrice("$1,234.56"), 1e-9)
	assert.InDelta(t, 412.3, ParsePrice(" 412.30 USD "), 1e-9)
	assert.Zero(t, ParsePrice("N/A"))
}

func TestParseChange(t *testing.T) {
	c, p := ParseChange("+1.23 (+0.45%)")
	assert.InDelta(t, 1.23, c, 1e-9)
	assert.InDelta(t, 0.0045, p, 1e-9)

	c, p = ParseChange("-12.5 (-2.10%) today")
	assert.InDelta(t, -12.5, c, 1e-9)
	assert.InDelta(t, -0.021, p, 1e-9)

	c, p = ParseChange("unchanged")
	assert.Zero(t, c)
	assert.Zero(t, p)
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://www.reuters.com/markets/a-1", absoluteURL("https://www.reuters.com", "/markets/a-1"))
	assert.Equal(t, "https://other.com/x", absoluteURL("https://www.reuters.com", "https://other.com/x"))
	assert.Equal(t, "", absoluteURL("https://www.reuters.com", "  "))
}

func TestParsePublishedFallsBackToNow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got := parsePublished("2024-02-28T09:15:00Z", now)
	assert.True(t, time.Date(2024, 2, 28, 9, 15, 0, 0, time.UTC).Equal(got))

	got = parsePublished("Feb 27, 2024", now)
	assert.Equal(t, 27, got.Day())

	assert.True(t, now.Equal(parsePublished("2 hours ago", now)))
}

func TestRandomUserAgentFromPool(t *testing.T) {
	ua := RandomUserAgent()
	assert.True(t, strings.HasPrefix(ua, "Mozilla/5.0"))
}
