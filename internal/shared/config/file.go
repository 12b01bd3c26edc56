package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout read from CONFIG_FILE. Secrets stay in the
// environment and have no file keys.
type fileConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	CORSAllowOrigins []string `yaml:"corsAllowOrigins"`
	LLM              struct {
		Provider         string `yaml:"provider"`
		Model            string `yaml:"model"`
		TimeoutSeconds   int    `yaml:"timeoutSeconds"`
		JSONMode         *bool  `yaml:"jsonMode"`
		MaxTokens        int    `yaml:"maxTokens"`
		RetryMaxAttempts int    `yaml:"retryMaxAttempts"`
	} `yaml:"llm"`
	Upload struct {
		MaxBytes int64 `yaml:"maxBytes"`
	} `yaml:"upload"`
	Source struct {
		AWSRegion string   `yaml:"awsRegion"`
		Buckets   []string `yaml:"buckets"`
		Prefix    string   `yaml:"prefix"`
	} `yaml:"source"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

func readFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fc, nil
}

// apply overlays the non-zero file values onto base.
func (f fileConfig) apply(base Config) Config {
	if f.Port != "" {
		base.Port = f.Port
	}
	if f.Env != "" {
		base.Env = f.Env
	}
	if len(f.CORSAllowOrigins) > 0 {
		base.CORSAllowOrigin = f.CORSAllowOrigins
	}

	if f.LLM.Provider != "" {
		base.LLMProvider = f.LLM.Provider
	}
	if f.LLM.Model != "" {
		base.LLMModel = f.LLM.Model
	}
	if f.LLM.TimeoutSeconds > 0 {
		base.LLMTimeout = time.Duration(f.LLM.TimeoutSeconds) * time.Second
	}
	if f.LLM.JSONMode != nil {
		base.LLMJSONMode = *f.LLM.JSONMode
	}
	if f.LLM.MaxTokens > 0 {
		base.LLMMaxTokens = f.LLM.MaxTokens
	}
	if f.LLM.RetryMaxAttempts > 0 {
		base.LLMRetryMaxAttempts = f.LLM.RetryMaxAttempts
	}

	if f.Upload.MaxBytes > 0 {
		base.MaxUploadBytes = f.Upload.MaxBytes
	}

	if f.Source.AWSRegion != "" {
		base.AWSRegion = f.Source.AWSRegion
	}
	if len(f.Source.Buckets) > 0 {
		base.SourceBuckets = f.Source.Buckets
	}
	if f.Source.Prefix != "" {
		base.SourcePrefix = f.Source.Prefix
	}

	if f.RateLimit.RPS > 0 {
		base.RateLimitRPS = f.RateLimit.RPS
	}
	if f.RateLimit.Burst > 0 {
		base.RateLimitBurst = f.RateLimit.Burst
	}
	return base
}
