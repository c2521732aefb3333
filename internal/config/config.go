package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string `validate:"required,numeric"`

	// DBDriver: postgres(默认) / sqlite
	DBDriver    string `validate:"oneof=postgres sqlite"`
	DatabaseDSN string `validate:"required"`
	RedisAddr   string

	// 全站 Basic Auth，两者都配置时才启用
	BasicAuthUser string
	BasicAuthPass string

	// 前端构建产物目录，为空则不托管静态文件
	WebRoot string

	// 基金 + 种子新闻的 YAML 文件
	SeedFile string

	PriceCronSpec string `validate:"required"`
	NewsCronSpec  string `validate:"required"`
	StartupDelay  time.Duration

	Scraping    ScrapingConfig
	HuggingFace HuggingFaceConfig
	Polygon     PolygonConfig
	Chat        ChatConfig
	Sync        SyncConfig
	Log         LogConfig
}

type ScrapingConfig struct {
	Delay          time.Duration
	Timeout        time.Duration `validate:"gt=0"`
	NewsTimeout    time.Duration `validate:"gt=0"`
	MaxRetries     int           `validate:"gte=0"`
	NewsEnabled    bool
	BrowserEnabled bool
}

type HuggingFaceConfig struct {
	APIKey  string
	BaseURL string `validate:"required,url"`
	// 两次推理请求之间的最小间隔
	RequestInterval time.Duration
}

type PolygonConfig struct {
	APIKey  string
	BaseURL string `validate:"required,url"`
}

type ChatConfig struct {
	// 按顺序尝试的提供方：groq / anthropic / gemini
	Providers []string `validate:"dive,oneof=groq anthropic gemini"`

	GroqAPIKey  string
	GroqBaseURL string `validate:"required,url"`
	GroqModel   string

	AnthropicAPIKey string
	AnthropicModel  string

	GeminiAPIKey string
	GeminiModel  string

	MaxTokens   int     `validate:"gt=0"`
	Temperature float64 `validate:"gte=0,lte=2"`
}

type SyncConfig struct {
	BatchSize       int `validate:"gte=1"`
	BatchDelay      time.Duration
	NewsFunds       int `validate:"gte=0"`
	ArticlesPerFund int `validate:"gte=1"`
	FundDelay       time.Duration
}

type LogConfig struct {
	Level          string
	Format         string `validate:"oneof=json console"`
	TracingEnabled bool
}

// Load 读取环境变量（若存在 .env 则先加载）并填充默认值
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DatabaseDSN:   getEnv("DATABASE_DSN", "host=localhost user=funddash password=funddash dbname=funddash port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		BasicAuthUser: os.Getenv("APP_BASIC_USER"),
		BasicAuthPass: os.Getenv("APP_BASIC_PASS"),
		WebRoot:       os.Getenv("WEB_ROOT"),
		SeedFile:      getEnv("SEED_FILE", "seed.yaml"),
		PriceCronSpec: getEnv("PRICE_CRON", "*/10 * * * *"),
		NewsCronSpec:  getEnv("NEWS_CRON", "*/30 * * * *"),
		StartupDelay:  getEnvDuration("STARTUP_DELAY_MS", 15*time.Second),
		Scraping: ScrapingConfig{
			Delay:          getEnvDuration("SCRAPING_DELAY_MS", 15*time.Second),
			Timeout:        getEnvDuration("SCRAPING_TIMEOUT_MS", 60*time.Second),
			NewsTimeout:    getEnvDuration("NEWS_SCRAPING_TIMEOUT_MS", 120*time.Second),
			MaxRetries:     getEnvInt("SCRAPING_MAX_RETRIES", 2),
			NewsEnabled:    getEnvBool("NEWS_SCRAPING_ENABLED", true),
			BrowserEnabled: getEnvBool("BROWSER_SCRAPING_ENABLED", true),
		},
		HuggingFace: HuggingFaceConfig{
			APIKey:          os.Getenv("HUGGINGFACE_API_KEY"),
			BaseURL:         getEnv("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co"),
			RequestInterval: getEnvDuration("HUGGINGFACE_INTERVAL_MS", time.Second),
		},
		Polygon: PolygonConfig{
			APIKey:  os.Getenv("POLYGON_API_KEY"),
			BaseURL: getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
		},
		Chat: ChatConfig{
			Providers:       getEnvList("CHAT_PROVIDERS", []string{"groq", "anthropic", "gemini"}),
			GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
			GroqBaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			GroqModel:       getEnv("GROQ_MODEL", "llama3-70b-8192"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
			GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxTokens:       getEnvInt("CHAT_MAX_TOKENS", 1000),
			Temperature:     getEnvFloat("CHAT_TEMPERATURE", 0.7),
		},
		Sync: SyncConfig{
			BatchSize:       getEnvInt("SYNC_BATCH_SIZE", 3),
			BatchDelay:      getEnvDuration("SYNC_BATCH_DELAY_MS", 2*time.Second),
			NewsFunds:       getEnvInt("SYNC_NEWS_FUNDS", 5),
			ArticlesPerFund: getEnvInt("SYNC_ARTICLES_PER_FUND", 3),
			FundDelay:       getEnvDuration("SYNC_FUND_DELAY_MS", time.Second),
		},
		Log: LogConfig{
			Level:          getEnv("LOG_LEVEL", "info"),
			Format:         getEnv("LOG_FORMAT", "console"),
			TracingEnabled: getEnvBool("LOG_TRACING_ENABLED", false),
		},
	}

	return cfg
}

// Validate 校验配置取值范围，启动时调用
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration 读取毫秒数
func getEnvDuration(key string, def time.Duration) time.Duration {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func getEnvList(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
