package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"legislens/internal/analyses"
	"legislens/internal/llm"
	"legislens/internal/llm/anthropic"
	"legislens/internal/llm/openai"
	"legislens/internal/report"
	"legislens/internal/services/health"
	"legislens/internal/shared/config"
	"legislens/internal/shared/server"
	"legislens/internal/shared/telemetry"
	"legislens/internal/source"
	s3source "legislens/internal/source/s3"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	LLM             llm.Client
	Source          source.Source
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	ReportHandler   *report.Handler
}

// Build validates cfg and wires the model client, document source, services
// and router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	client, err := BuildLLM(cfg)
	if err != nil {
		return nil, err
	}

	src, err := buildSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc := NewAnalysesService(cfg, client)
	app := &App{
		Config:          cfg,
		LLM:             client,
		Source:          src,
		AnalysesService: svc,
		AnalysisHandler: analyses.NewHandler(svc, src, cfg.MaxUploadBytes),
		ReportHandler:   report.NewHandler(),
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		ReportHandler:   app.ReportHandler,
		Health:          health.NewService(cfg.LLMProvider, resolveModel(cfg)),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":            cfg.Env,
		"provider":       cfg.LLMProvider,
		"model":          resolveModel(cfg),
		"json_mode":      cfg.LLMJSONMode,
		"s3_source":      src != nil,
		"max_upload":     cfg.MaxUploadBytes,
		"retry_attempts": cfg.LLMRetryMaxAttempts,
	})
	return app, nil
}

// BuildLLM constructs the provider client named by cfg.LLMProvider.
func BuildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		client, err := openai.NewClient(cfg.OpenAIAPIKey, resolveModel(cfg), openai.Options{
			Timeout:   cfg.LLMTimeout,
			JSONMode:  cfg.LLMJSONMode,
			MaxTokens: cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		return client, nil
	case config.ProviderAnthropic:
		client, err := anthropic.NewClient(cfg.AnthropicAPIKey, resolveModel(cfg), anthropic.Options{
			Timeout:   cfg.LLMTimeout,
			MaxTokens: cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// NewAnalysesService wraps client in the analysis service configured by cfg.
func NewAnalysesService(cfg config.Config, client llm.Client) *analyses.Service {
	return analyses.NewService(client, analyses.ServiceOptions{
		Provider: cfg.LLMProvider,
		Model:    resolveModel(cfg),
		Retry:    analyses.RetryPolicy{MaxAttempts: cfg.LLMRetryMaxAttempts},
	})
}

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-haiku-20240307"
)

// resolveModel returns the configured model or the provider's default.
func resolveModel(cfg config.Config) string {
	if model := strings.TrimSpace(cfg.LLMModel); model != "" {
		return model
	}
	if cfg.LLMProvider == config.ProviderAnthropic {
		return defaultAnthropicModel
	}
	return defaultOpenAIModel
}

func buildSource(ctx context.Context, cfg config.Config) (source.Source, error) {
	if len(cfg.SourceBuckets) == 0 {
		return nil, nil
	}
	src, err := s3source.New(ctx, s3source.Options{
		Region:   cfg.AWSRegion,
		Buckets:  cfg.SourceBuckets,
		Prefix:   cfg.SourcePrefix,
		MaxBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 source: %w", err)
	}
	return src, nil
}
