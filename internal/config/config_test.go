package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	t.Setenv(key, "")
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestTypedEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_BOOL", "maybe")
	t.Setenv("TEST_MS", "-5")
	t.Setenv("TEST_FLOAT", "0.25")

	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
	assert.True(t, getEnvBool("TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("TEST_MS", time.Second))
	assert.InDelta(t, 0.25, getEnvFloat("TEST_FLOAT", 1), 1e-9)
}

func TestGetEnvListNormalises(t *testing.T) {
	t.Setenv("TEST_LIST", " Gemini, ,GROQ ")
	assert.Equal(t, []string{"gemini", "groq"}, getEnvList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, getEnvList("TEST_LIST", []string{"x"}))
}

func TestLoadReadsAuthAndPorts(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("SCRAPING_DELAY_MS", "500")

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	assert.Equal(t, 500*time.Millisecond, cfg.Scraping.Delay)
	assert.Equal(t, "llama3-70b-8192", cfg.Chat.GroqModel)
	assert.Equal(t, 3, cfg.Sync.BatchSize)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	cfg := Load()
	require.Error(t, cfg.Validate())

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CHAT_PROVIDERS", "groq,openai")
	cfg = Load()
	require.Error(t, cfg.Validate())

	t.Setenv("CHAT_PROVIDERS", "gemini")
	t.Setenv("SYNC_BATCH_SIZE", "0")
	cfg = Load()
	require.Error(t, cfg.Validate())
}
