package analyses

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"legislens/internal/extract"
	"legislens/internal/llm"
	"legislens/internal/shared/metrics"
	"legislens/internal/shared/telemetry"
	"legislens/internal/shared/util"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusDegraded   = "degraded"
	StatusFailed     = "failed"
)

// Outcome is one finished analysis as reported to callers.
type Outcome struct {
	ID         string        `json:"analysisId"`
	Result     Result        `json:"result"`
	PromptHash string        `json:"promptHash,omitempty"`
	Duration   time.Duration `json:"-"`
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Provider string
	Model    string
	Retry    RetryPolicy
	// DisableFallback surfaces ErrUnparseableResponse instead of substituting
	// DegradedResult.
	DisableFallback bool
}

// Service runs the analysis pipeline for request handlers with retries,
// metrics and status logging around it.
type Service struct {
	pipeline *Pipeline
	provider string
	model    string
	fallback bool
}

// NewService wraps client with retries and builds the pipeline on top of it.
func NewService(client llm.Client, opts ServiceOptions) *Service {
	return &Service{
		pipeline: NewPipeline(NewRetryingClient(client, opts.Retry)),
		provider: opts.Provider,
		model:    opts.Model,
		fallback: !opts.DisableFallback,
	}
}

// Analyze runs one document through the pipeline. Unparseable model output
// yields DegradedResult unless fallback is disabled; every other failure is
// returned with its sentinel intact.
func (s *Service) Analyze(ctx context.Context, doc extract.Document) (Outcome, error) {
	out := Outcome{ID: uuid.NewString()}
	startedAt := time.Now()
	base := map[string]any{
		"request_id":      requestIDFromContext(ctx),
		"analysis_id":     out.ID,
		"format":          string(doc.Format),
		"file_name":       doc.FileName,
		"document_bytes":  len(doc.Data),
		"document_sha256": util.DigestHex(doc.Data),
		"provider":        s.provider,
		"model":           s.model,
	}

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", withFields(base, map[string]any{
		"status": StatusProcessing,
	}))

	result, prompt, err := s.pipeline.run(ctx, doc)
	if prompt.User != "" {
		out.PromptHash = prompt.Hash()
	}
	out.Duration = time.Since(startedAt)
	durationMs := metrics.SinceMillis(startedAt)
	metrics.ObserveAnalysisDurationMs(durationMs)

	if err != nil && s.fallback && errors.Is(err, ErrUnparseableResponse) {
		metrics.IncAnalysisDegraded()
		telemetry.Warn("analysis.status", withFields(base, map[string]any{
			"status":            StatusDegraded,
			"status_transition": "processing->degraded",
			"prompt_hash":       out.PromptHash,
			"duration_ms":       durationMs,
			"error":             sanitizeError(err),
		}))
		out.Result = DegradedResult()
		return out, nil
	}
	if err != nil {
		code, retryable := Classify(err)
		metrics.IncAnalysisFailed()
		telemetry.Error("analysis.status", withFields(base, map[string]any{
			"status":            StatusFailed,
			"status_transition": "processing->failed",
			"prompt_hash":       out.PromptHash,
			"duration_ms":       durationMs,
			"error_code":        code,
			"retryable":         retryable,
			"error":             sanitizeError(err),
		}))
		return out, err
	}

	counts := result.CountByLevel()
	metrics.IncAnalysisCompleted()
	telemetry.Info("analysis.status", withFields(base, map[string]any{
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"prompt_hash":       out.PromptHash,
		"duration_ms":       durationMs,
		"risk_score":        result.RiskScore,
		"clauses_high":      counts.High,
		"clauses_medium":    counts.Medium,
		"clauses_low":       counts.Low,
	}))
	out.Result = result
	return out, nil
}

func withFields(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
