package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	LLMProvider         string
	LLMModel            string
	OpenAIAPIKey        string
	AnthropicAPIKey     string
	LLMTimeout          time.Duration
	LLMJSONMode         bool
	LLMMaxTokens        int
	LLMRetryMaxAttempts int

	MaxUploadBytes int64

	AWSRegion     string
	SourceBuckets []string
	SourcePrefix  string

	RateLimitRPS   float64
	RateLimitBurst int
}

func defaults() Config {
	return Config{
		Port:                "8080",
		Env:                 "dev",
		CORSAllowOrigin:     []string{"http://localhost:5173"},
		LLMProvider:         ProviderOpenAI,
		LLMTimeout:          120 * time.Second,
		LLMJSONMode:         true,
		LLMRetryMaxAttempts: 3,
		MaxUploadBytes:      10 << 20,
		RateLimitRPS:        0.5,
		RateLimitBurst:      5,
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// environment variables, which take precedence.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			log.Printf("config: %v (using defaults)", err)
		} else {
			cfg = fileCfg.apply(cfg)
		}
	}
	cfg.applyEnv()
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	return cfg
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.CORSAllowOrigin = splitAndTrim(v)
	}

	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	if secs := getInt("LLM_TIMEOUT_SECONDS", 0); secs > 0 {
		c.LLMTimeout = time.Duration(secs) * time.Second
	}
	c.LLMJSONMode = getBool("LLM_JSON_MODE", c.LLMJSONMode)
	c.LLMMaxTokens = getInt("LLM_MAX_TOKENS", c.LLMMaxTokens)
	c.LLMRetryMaxAttempts = getInt("LLM_RETRY_MAX_ATTEMPTS", c.LLMRetryMaxAttempts)

	c.MaxUploadBytes = int64(getInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	if v := os.Getenv("SOURCE_S3_BUCKET"); v != "" {
		c.SourceBuckets = splitAndTrim(v)
	}
	c.SourcePrefix = getEnv("SOURCE_S3_PREFIX", c.SourcePrefix)

	c.RateLimitRPS = getFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getInt("RATE_LIMIT_BURST", c.RateLimitBurst)
}

// APIKey returns the credential for the configured provider.
func (c Config) APIKey() string {
	if c.LLMProvider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// Validate reports settings the model client cannot start without.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	if strings.TrimSpace(c.APIKey()) == "" {
		return fmt.Errorf("API key for provider %s is not set", c.LLMProvider)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %g", key, raw, def)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %t", key, raw, def)
		return def
	}
	return b
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
