package analyses

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legislens/internal/extract"
	"legislens/internal/llm"
	"legislens/internal/shared/util"
)

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		lines = append(lines, line)
	}
	return lines
}

func statusLines(lines []map[string]any) []map[string]any {
	var out []map[string]any
	for _, l := range lines {
		if l["msg"] == "analysis.status" {
			out = append(out, l)
		}
	}
	return out
}

func TestServiceAnalyzeCompletes(t *testing.T) {
	logs := captureLogs(t)
	stub := newStubLLM(stubReply{text: sampleReply})
	svc := NewService(stub, ServiceOptions{Provider: "openai", Model: "gpt-4o-mini", Retry: fastPolicy(2)})

	doc := txtDoc("Confidentiality obligations survive termination.")
	ctx := WithRequestID(context.Background(), "req-123")
	out, err := svc.Analyze(ctx, doc)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(out.ID)
	require.NoError(t, parseErr)
	assert.Equal(t, 35, out.Result.RiskScore)
	assert.False(t, out.Result.Degraded)
	assert.Len(t, out.PromptHash, 64)
	assert.Equal(t, stub.prompts[0].Hash(), out.PromptHash)

	status := statusLines(decodeLogLines(t, logs))
	require.Len(t, status, 2)
	assert.Equal(t, StatusProcessing, status[0]["status"])
	assert.Equal(t, StatusCompleted, status[1]["status"])
	assert.Equal(t, "req-123", status[1]["request_id"])
	assert.Equal(t, out.ID, status[1]["analysis_id"])
	assert.Equal(t, util.DigestHex(doc.Data), status[1]["document_sha256"])
	assert.NotContains(t, logs.String(), "Confidentiality obligations")
}

func TestServiceSubstitutesDegradedResult(t *testing.T) {
	logs := captureLogs(t)
	stub := newStubLLM(stubReply{text: "Sorry, the contract is too complex to summarise."})
	svc := NewService(stub, ServiceOptions{Retry: fastPolicy(3)})

	out, err := svc.Analyze(context.Background(), txtDoc("Clause 1. Exclusivity."))
	require.NoError(t, err)
	assert.Equal(t, DegradedResult(), out.Result)
	assert.Equal(t, 1, stub.calls())

	status := statusLines(decodeLogLines(t, logs))
	require.NotEmpty(t, status)
	last := status[len(status)-1]
	assert.Equal(t, StatusDegraded, last["status"])
	assert.Equal(t, "warn", last["level"])
}

func TestServiceDisableFallbackSurfacesError(t *testing.T) {
	captureLogs(t)
	stub := newStubLLM(stubReply{text: "no json here"})
	svc := NewService(stub, ServiceOptions{Retry: fastPolicy(1), DisableFallback: true})

	_, err := svc.Analyze(context.Background(), txtDoc("Clause 1."))
	require.ErrorIs(t, err, ErrUnparseableResponse)
}

func TestServiceRetriesTransientFailures(t *testing.T) {
	captureLogs(t)
	stub := newStubLLM(
		stubReply{err: llm.Transportf("connection reset by peer")},
		stubReply{text: sampleReply},
	)
	svc := NewService(stub, ServiceOptions{Retry: fastPolicy(3)})

	out, err := svc.Analyze(context.Background(), txtDoc("Auto-renewal for successive one year terms."))
	require.NoError(t, err)
	assert.Equal(t, 35, out.Result.RiskScore)
	assert.Equal(t, 2, stub.calls())
}

func TestServiceFailureIsLoggedWithCode(t *testing.T) {
	logs := captureLogs(t)
	stub := newStubLLM(stubReply{text: sampleReply})
	svc := NewService(stub, ServiceOptions{Retry: fastPolicy(1)})

	out, err := svc.Analyze(context.Background(), extract.Document{Data: []byte("  "), Format: extract.FormatTXT})
	require.ErrorIs(t, err, llm.ErrEmptyDocument)
	assert.NotEmpty(t, out.ID)
	assert.Empty(t, out.PromptHash)
	assert.Zero(t, stub.calls())

	status := statusLines(decodeLogLines(t, logs))
	require.NotEmpty(t, status)
	last := status[len(status)-1]
	assert.Equal(t, StatusFailed, last["status"])
	assert.Equal(t, ErrorCodeEmptyDocument, last["error_code"])
	assert.Equal(t, false, last["retryable"])
}

func TestServiceNilClient(t *testing.T) {
	captureLogs(t)
	_, err := NewService(nil, ServiceOptions{}).Analyze(context.Background(), txtDoc("x"))
	require.Error(t, err)
}
