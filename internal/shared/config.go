package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv      string `yaml:"app_env"`
	LogLevel    string `yaml:"log_level"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	MySQLDSN    string `yaml:"mysql_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPass   string `yaml:"redis_password"`

	SentimentProvider string `yaml:"sentiment_provider"` // watson|anthropic
	WatsonURL         string `yaml:"watson_url"`
	WatsonKey         string `yaml:"watson_api_key"`
	WatsonVersion     string `yaml:"watson_version"`
	AnthropicKey      string `yaml:"anthropic_api_key"`
	AnthropicModel    string `yaml:"anthropic_model"`
	ClassifyRPS       int    `yaml:"classify_rps"`
	ClassifyTimeout   int    `yaml:"classify_timeout_seconds"`
	BatchTimeout      int    `yaml:"batch_timeout_seconds"`
	Workers           int    `yaml:"analyze_workers"`

	ReportAuthor   string `yaml:"report_author"`
	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	CacheTTLSeconds int   `yaml:"cache_ttl_seconds"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// Load reads CONFIG_PATH (default config.yaml) when present, applies
// environment overrides, then fills defaults.
func Load() (Config, error) {
	var c Config

	path := "config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		path = p
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("loaded config file")
	}

	// Env vars override YAML values
	envOverride(&c.AppEnv, "APP_ENV")
	envOverride(&c.LogLevel, "LOG_LEVEL")
	envOverride(&c.HTTPAddr, "HTTP_ADDR")
	envOverride(&c.MetricsAddr, "METRICS_ADDR")
	envOverride(&c.MySQLDSN, "MYSQL_DSN")
	envOverride(&c.SQLitePath, "SQLITE_PATH")
	envOverride(&c.RedisAddr, "REDIS_ADDR")
	envOverride(&c.RedisPass, "REDIS_PASSWORD")
	envOverrideInt(&c.RedisDB, "REDIS_DB")
	envOverride(&c.SentimentProvider, "SENTIMENT_PROVIDER")
	envOverride(&c.WatsonURL, "WATSON_URL")
	envOverride(&c.WatsonKey, "WATSON_API_KEY")
	envOverride(&c.WatsonVersion, "WATSON_VERSION")
	envOverride(&c.AnthropicKey, "ANTHROPIC_API_KEY")
	envOverride(&c.AnthropicModel, "ANTHROPIC_MODEL")
	envOverrideInt(&c.ClassifyRPS, "CLASSIFY_RPS")
	envOverrideInt(&c.ClassifyTimeout, "CLASSIFY_TIMEOUT_SECONDS")
	envOverrideInt(&c.BatchTimeout, "BATCH_TIMEOUT_SECONDS")
	envOverrideInt(&c.Workers, "ANALYZE_WORKERS")
	envOverride(&c.ReportAuthor, "REPORT_AUTHOR")
	envOverride(&c.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&c.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverrideInt(&c.CacheTTLSeconds, "CACHE_TTL_SECONDS")
	envOverrideInt64(&c.MaxUploadBytes, "MAX_UPLOAD_BYTES")

	c.applyDefaults()

	switch c.SentimentProvider {
	case "watson":
		if c.WatsonKey == "" || c.WatsonURL == "" {
			log.Warn().Msg("WATSON_API_KEY or WATSON_URL is empty")
		}
	case "anthropic":
		if c.AnthropicKey == "" {
			log.Warn().Msg("ANTHROPIC_API_KEY is empty")
		}
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	def := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	defInt := func(p *int, v int) {
		if *p <= 0 {
			*p = v
		}
	}
	def(&c.AppEnv, "prod")
	def(&c.LogLevel, "info")
	def(&c.HTTPAddr, ":8080")
	def(&c.MySQLDSN, "root:root@tcp(localhost:3306)/feedback?parseTime=true&charset=utf8mb4,utf8&loc=UTC")
	def(&c.SQLitePath, "feedback.db")
	def(&c.RedisAddr, "localhost:6379")
	def(&c.SentimentProvider, "watson")
	def(&c.WatsonVersion, "2022-04-07")
	def(&c.AnthropicModel, "claude-3-5-haiku-latest")
	def(&c.ReportAuthor, "Customer Feedback Team")
	defInt(&c.ClassifyRPS, 5)
	defInt(&c.ClassifyTimeout, 20)
	defInt(&c.BatchTimeout, 600)
	defInt(&c.Workers, 4)
	defInt(&c.CacheTTLSeconds, 900)
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	c.SentimentProvider = strings.ToLower(c.SentimentProvider)
}

func (c Config) ClassifyTimeoutDuration() time.Duration {
	return time.Duration(c.ClassifyTimeout) * time.Second
}

func (c Config) BatchTimeoutDuration() time.Duration {
	return time.Duration(c.BatchTimeout) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// SlackEnabled reports whether batch digests should be posted.
func (c Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

// Validate reports settings that make the classifier unusable.
func (c Config) Validate() error {
	var errs []error
	switch c.SentimentProvider {
	case "watson":
		if c.WatsonURL == "" {
			errs = append(errs, errors.New("WATSON_URL is required for the watson provider"))
		}
		if c.WatsonKey == "" {
			errs = append(errs, errors.New("WATSON_API_KEY is required for the watson provider"))
		}
	case "anthropic":
		if c.AnthropicKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SENTIMENT_PROVIDER %q", c.SentimentProvider))
	}
	if (c.SlackBotToken == "") != (c.SlackChannelID == "") {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN and SLACK_CHANNEL_ID must be set together"))
	}
	return errors.Join(errs...)
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		} else {
			log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer env value")
		}
	}
}

func envOverrideInt64(target *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		} else {
			log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer env value")
		}
	}
}
