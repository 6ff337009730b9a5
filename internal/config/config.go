package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFeeds are the AI news feeds polled when neither FEED_URLS nor FEEDS_FILE is set.
var DefaultFeeds = []string{
	"https://www.technologyreview.com/topic/artificial-intelligence/feed/",
	"https://export.arxiv.org/rss/cs.AI",
	"https://rsshub.app/deepmind/blog",
	"https://venturebeat.com/category/ai/feed/",
	"https://www.theverge.com/rss/ai/index.xml",
	"https://syncedreview.com/tag/artificial-intelligence/feed/",
	"https://hnrss.org/newest?q=AI+OR+LLM+OR+GPT",
	"https://lobste.rs/t/ai.rss",
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Telegram
	TelegramBotToken      string  `json:"-" validate:"required"`
	TelegramAdminChatID   int64   `json:"telegram_admin_chat_id" validate:"required"`
	TelegramChannelID     string  `json:"telegram_channel_id" validate:"required"`
	TelegramAPIURL        string  `json:"telegram_api_url" validate:"url"`
	TelegramWebhookURL    string  `json:"telegram_webhook_url" validate:"omitempty,url"`
	TelegramWebhookSecret string  `json:"-" validate:"required_with=TelegramWebhookURL"`
	TelegramRatePerSec    float64 `json:"telegram_rate_per_sec" validate:"gt=0"`

	// AI Configuration
	GroqAPIKey      string        `json:"-" validate:"required"`
	GroqModel       string        `json:"groq_model"`
	GroqEndpoint    string        `json:"groq_endpoint" validate:"url"`
	StabilityAPIKey string        `json:"-" validate:"required"`
	StabilityHost   string        `json:"stability_host" validate:"url"`
	StabilityEngine string        `json:"stability_engine"`
	AITimeout       time.Duration `json:"ai_timeout"`
	PostFooter      string        `json:"post_footer"`
	FallbackImage   string        `json:"fallback_image"`
	WatermarkText   string        `json:"watermark_text"`

	// Feeds
	FeedURLs        []string `json:"feed_urls" validate:"min=1,dive,url"`
	FeedsFile       string   `json:"feeds_file"`
	MaxItemsPerFeed int      `json:"max_items_per_feed" validate:"gte=1"`

	// Pipeline timing
	CheckInterval time.Duration `json:"check_interval" validate:"gt=0"`
	ItemDelay     time.Duration `json:"item_delay"`
	ErrorCooldown time.Duration `json:"error_cooldown"`
	LoopCooldown  time.Duration `json:"loop_cooldown"`

	// Storage
	DatabaseURL       string        `json:"database_url" validate:"required"`
	LedgerBackend     string        `json:"ledger_backend" validate:"oneof=sql redis"`
	BlobBackend       string        `json:"blob_backend" validate:"oneof=file s3"`
	ImageDir          string        `json:"image_dir"`
	WorkerPollTimeout time.Duration `json:"worker_poll_timeout" validate:"gt=0"`

	// Redis configuration
	RedisURL    string `json:"redis_url" validate:"required_if=LedgerBackend redis"`
	RedisPrefix string `json:"redis_prefix"`

	// CloudFlare R2 Configuration
	R2Endpoint  string `json:"r2_endpoint" validate:"omitempty,url"`
	R2AccessKey string `json:"-" validate:"required_if=BlobBackend s3"`
	R2SecretKey string `json:"-" validate:"required_if=BlobBackend s3"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey string `json:"-"`
}

// Load loads configuration from environment variables and validates it.
// A missing credential is reported as an error; callers treat it as fatal.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Telegram
		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID:   getEnvAsInt64("TELEGRAM_ADMIN_CHAT_ID", 0),
		TelegramChannelID:     getEnv("TELEGRAM_CHANNEL_ID", ""),
		TelegramAPIURL:        getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		TelegramWebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		TelegramRatePerSec:    getEnvAsFloat("TELEGRAM_RATE_PER_SEC", 20),

		// AI Configuration
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqModel:       getEnv("GROQ_MODEL", "llama3-70b-8192"),
		GroqEndpoint:    getEnv("GROQ_ENDPOINT", "https://api.groq.com/openai/v1/chat/completions"),
		StabilityAPIKey: getEnv("STABILITY_API_KEY", ""),
		StabilityHost:   getEnv("STABILITY_API_HOST", "https://api.stability.ai"),
		StabilityEngine: getEnv("STABILITY_ENGINE", "stable-diffusion-xl-1024-v1-0"),
		AITimeout:       getEnvAsDuration("AI_TIMEOUT", 60*time.Second),
		PostFooter:      getEnv("POST_FOOTER", "Подпишись на @ai_revo"),
		FallbackImage:   getEnv("FALLBACK_IMAGE_PATH", "assets/fallback.png"),
		WatermarkText:   getEnv("WATERMARK_TEXT", "@ai_revo"),

		// Feeds
		FeedsFile:       getEnv("FEEDS_FILE", ""),
		MaxItemsPerFeed: getEnvAsInt("MAX_ITEMS_PER_FEED", 2),

		// Pipeline timing
		CheckInterval: getEnvAsDuration("CHECK_INTERVAL", 2*time.Hour),
		ItemDelay:     getEnvAsDuration("ITEM_DELAY", 15*time.Second),
		ErrorCooldown: getEnvAsDuration("ERROR_COOLDOWN", 30*time.Second),
		LoopCooldown:  getEnvAsDuration("LOOP_COOLDOWN", 60*time.Second),

		// Storage
		DatabaseURL:       getEnv("DATABASE_URL", "sqlite://posts.db"),
		LedgerBackend:     getEnv("LEDGER_BACKEND", "sql"),
		BlobBackend:       getEnv("BLOB_BACKEND", "file"),
		ImageDir:          getEnv("IMAGE_DIR", "."),
		WorkerPollTimeout: getEnvAsDuration("WORKER_POLL_TIMEOUT", time.Second),

		// Redis configuration
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "newsbot:seen:"),

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", "newsbot"),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", "bot.log"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	feeds, err := loadFeeds(getEnv("FEED_URLS", ""), cfg.FeedsFile)
	if err != nil {
		return nil, err
	}
	cfg.FeedURLs = feeds

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// R2URL is the bucket endpoint: R2_ENDPOINT, or the account's R2 endpoint
// derived from CLOUDFLARE_ACCOUNT_ID.
func (c *Config) R2URL() string {
	if c.R2Endpoint != "" || c.R2AccountID == "" {
		return c.R2Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// Validate checks required credentials and value ranges.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		if c.BlobBackend == "s3" && c.R2URL() == "" {
			return errors.New("R2_ENDPOINT or CLOUDFLARE_ACCOUNT_ID is required for the s3 blob backend")
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

type feedsFile struct {
	Feeds []string `yaml:"feeds"`
}

// loadFeeds resolves the feed list: FEED_URLS wins over FEEDS_FILE, which wins over DefaultFeeds.
func loadFeeds(list, path string) ([]string, error) {
	if list != "" {
		var feeds []string
		for _, f := range strings.Split(list, ",") {
			if f = strings.TrimSpace(f); f != "" {
				feeds = append(feeds, f)
			}
		}
		return feeds, nil
	}

	if path == "" {
		return append([]string(nil), DefaultFeeds...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var ff feedsFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &ff); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}
	return ff.Feeds, nil
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsInt64(name string, defaultVal int64) int64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
