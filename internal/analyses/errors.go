package analyses

import (
	"context"
	"errors"
	"strings"

	"legislens/internal/extract"
	"legislens/internal/llm"
)

// ErrUnparseableResponse is returned when no analysis record can be recovered
// from the model completion.
var ErrUnparseableResponse = errors.New("unparseable model response")

const (
	ErrorCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrorCodeExtraction        = "EXTRACTION_FAILED"
	ErrorCodeEmptyDocument     = "EMPTY_DOCUMENT"
	ErrorCodeLLMTransport      = "LLM_TRANSPORT"
	ErrorCodeLLMRateLimited    = "LLM_RATE_LIMITED"
	ErrorCodeLLMUnparseable    = "LLM_UNPARSEABLE"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeCanceled          = "CANCELED"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// Classify maps a pipeline error onto a stable code and whether retrying the
// same input may succeed.
func Classify(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return ErrorCodeUnsupportedFormat, false
	case errors.Is(err, extract.ErrExtractionFailure):
		return ErrorCodeExtraction, false
	case errors.Is(err, llm.ErrEmptyDocument):
		return ErrorCodeEmptyDocument, false
	case errors.Is(err, llm.ErrRateLimited):
		return ErrorCodeLLMRateLimited, true
	case errors.Is(err, llm.ErrTransport):
		return ErrorCodeLLMTransport, true
	case errors.Is(err, ErrUnparseableResponse):
		return ErrorCodeLLMUnparseable, true
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeLLMTimeout, true
	case errors.Is(err, context.Canceled):
		return ErrorCodeCanceled, false
	default:
		return ErrorCodeInternal, false
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
