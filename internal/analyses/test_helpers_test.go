package analyses

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"legislens/internal/llm"
	"legislens/internal/shared/telemetry"
)

func loadFixture(t *testing.T, path string) []byte {
	t.Helper()
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return payload
}

// captureLogs redirects telemetry output for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	t.Cleanup(telemetry.SetOutput(&buf))
	return &buf
}

// stubLLM replays scripted replies and records every prompt it receives.
type stubLLM struct {
	mu      sync.Mutex
	replies []stubReply
	prompts []llm.Prompt
}

type stubReply struct {
	text string
	err  error
}

func newStubLLM(replies ...stubReply) *stubLLM {
	return &stubLLM{replies: replies}
}

func (s *stubLLM) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", llm.Transportf("stub has no reply scripted")
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r.text, r.err
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// blockingLLM never answers until its context ends.
type blockingLLM struct {
	started chan struct{}
}

func (b *blockingLLM) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	close(b.started)
	<-ctx.Done()
	return "", ctx.Err()
}
