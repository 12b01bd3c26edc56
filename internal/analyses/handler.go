package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"legislens/internal/extract"
	"legislens/internal/llm"
	"legislens/internal/shared/server/middleware"
	"legislens/internal/shared/server/respond"
	"legislens/internal/source"
)

const defaultMaxUploadBytes int64 = 10 << 20

// Analyzer runs one document through the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, doc extract.Document) (Outcome, error)
}

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc            Analyzer
	Source         source.Source
	MaxUploadBytes int64
}

// NewHandler constructs a Handler. src may be nil, which disables the S3 route.
func NewHandler(svc Analyzer, src source.Source, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, Source: src, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.analyzeUpload)
	rg.POST("/analyses/text", h.analyzeText)
	rg.POST("/analyses/s3", h.analyzeS3)
}

type analysisResponse struct {
	AnalysisID string      `json:"analysisId"`
	PromptHash string      `json:"promptHash,omitempty"`
	DurationMs int64       `json:"durationMs"`
	Degraded   bool        `json:"degraded"`
	RiskBand   RiskLevel   `json:"riskBand"`
	Counts     LevelCounts `json:"counts"`
	Result     Result      `json:"result"`
}

func (h *Handler) analyzeUpload(c *gin.Context) {
	// Multipart framing needs headroom beyond the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+(1<<20))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondTooLarge(c, h.MaxUploadBytes)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", []map[string]string{
			{"field": "file", "issue": "required"},
		})
		return
	}
	if fileHeader.Size > h.MaxUploadBytes {
		respondTooLarge(c, h.MaxUploadBytes)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	if int64(len(data)) > h.MaxUploadBytes {
		respondTooLarge(c, h.MaxUploadBytes)
		return
	}

	format, err := resolveFormat(c.PostForm("format"), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	h.run(c, extract.Document{Data: data, Format: format, FileName: fileHeader.Filename})
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *Handler) analyzeText(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondTooLarge(c, h.MaxUploadBytes)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}

	h.run(c, extract.Document{Data: []byte(req.Text), Format: extract.FormatTXT})
}

type s3Request struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Format string `json:"format"`
}

func (h *Handler) analyzeS3(c *gin.Context) {
	if h.Source == nil {
		respond.Error(c, http.StatusNotImplemented, "source_disabled", "S3 document source is not configured", nil)
		return
	}

	var req s3Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "key is required", []map[string]string{
			{"field": "key", "issue": "required"},
		})
		return
	}

	obj, err := h.Source.Fetch(c.Request.Context(), req.Bucket, req.Key)
	if err != nil {
		switch {
		case errors.Is(err, source.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, source.ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "document location is not allowed", nil)
		case errors.Is(err, source.ErrTooLarge):
			respondTooLarge(c, h.MaxUploadBytes)
		default:
			respond.Error(c, http.StatusBadGateway, "source_error", "failed to fetch document", nil)
		}
		return
	}

	format, err := resolveFormat(req.Format, obj.Key, obj.ContentType, obj.Data)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	h.run(c, extract.Document{Data: obj.Data, Format: format, FileName: obj.Key})
}

func (h *Handler) run(c *gin.Context, doc extract.Document) {
	c.Set(middleware.DocumentFormatKey, string(doc.Format))
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	out, err := h.Svc.Analyze(ctx, doc)
	c.Set(middleware.AnalysisIDKey, out.ID)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	respond.OK(c, analysisResponse{
		AnalysisID: out.ID,
		PromptHash: out.PromptHash,
		DurationMs: out.Duration.Milliseconds(),
		Degraded:   out.Result.Degraded,
		RiskBand:   out.Result.RiskBand(),
		Counts:     out.Result.CountByLevel(),
		Result:     out.Result,
	})
}

func resolveFormat(declared, fileName, contentType string, data []byte) (extract.Format, error) {
	if strings.TrimSpace(declared) != "" {
		return extract.ParseFormat(declared)
	}
	return extract.DetectFormat(fileName, contentType, data)
}

func (h *Handler) respondAnalysisError(c *gin.Context, err error) {
	code, retryable := Classify(err)
	details := gin.H{"retryable": retryable}

	switch code {
	case ErrorCodeUnsupportedFormat:
		respond.Error(c, http.StatusUnsupportedMediaType, code, "Only PDF, DOCX and TXT documents are supported.", details)
	case ErrorCodeExtraction:
		respond.Error(c, http.StatusUnprocessableEntity, code, "The document could not be read.", details)
	case ErrorCodeEmptyDocument:
		respond.Error(c, http.StatusUnprocessableEntity, code, "The document contains no readable text.", details)
	case ErrorCodeLLMRateLimited:
		var rl *llm.RateLimitError
		if errors.As(err, &rl) {
			seconds := int(math.Ceil(rl.RetryAfter.Seconds()))
			details["retryAfterSeconds"] = seconds
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		respond.Error(c, http.StatusTooManyRequests, code, "The analysis provider is busy. Try again later.", details)
	case ErrorCodeLLMTransport:
		respond.Error(c, http.StatusBadGateway, code, "The analysis provider could not be reached.", details)
	case ErrorCodeLLMUnparseable:
		respond.Error(c, http.StatusBadGateway, code, "The analysis provider returned an unreadable answer.", details)
	case ErrorCodeLLMTimeout:
		respond.Error(c, http.StatusGatewayTimeout, code, "The analysis took too long.", details)
	case ErrorCodeCanceled:
		respond.Error(c, http.StatusRequestTimeout, code, "The request was canceled.", details)
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to analyze document", nil)
	}
}

func respondTooLarge(c *gin.Context, limit int64) {
	respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Sprintf("document exceeds %d bytes", limit), nil)
}
