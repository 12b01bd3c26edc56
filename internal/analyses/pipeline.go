package analyses

import (
	"context"
	"errors"
	"fmt"

	"legislens/internal/extract"
	"legislens/internal/llm"
)

// Pipeline runs extract, prompt, complete and parse for a single document.
// It holds no per-call state and is safe for concurrent use.
type Pipeline struct {
	client llm.Client
}

// NewPipeline builds a pipeline around the given model client.
func NewPipeline(client llm.Client) *Pipeline {
	return &Pipeline{client: client}
}

type completion struct {
	text string
	err  error
}

// Analyze extracts the document text, asks the model for a risk analysis and
// parses the reply. Errors keep their stage sentinel so callers can use
// errors.Is or Classify. A canceled ctx returns ctx.Err() without waiting for
// the model call to finish.
func (p *Pipeline) Analyze(ctx context.Context, doc extract.Document) (Result, error) {
	result, _, err := p.run(ctx, doc)
	return result, err
}

// run is Analyze that also reports the prompt sent, zero if none was built.
func (p *Pipeline) run(ctx context.Context, doc extract.Document) (Result, llm.Prompt, error) {
	if p == nil || p.client == nil {
		return Result{}, llm.Prompt{}, errors.New("analysis pipeline has no model client")
	}

	text, err := extract.Extract(ctx, doc)
	if err != nil {
		return Result{}, llm.Prompt{}, err
	}

	prompt, err := llm.BuildPrompt(text)
	if err != nil {
		return Result{}, llm.Prompt{}, err
	}

	raw, err := p.complete(ctx, prompt)
	if err != nil {
		return Result{}, prompt, err
	}

	result, err := ParseResponse(raw)
	if err != nil {
		return Result{}, prompt, fmt.Errorf("parse model response: %w", err)
	}
	return result, prompt, nil
}

func (p *Pipeline) complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	done := make(chan completion, 1)
	go func() {
		text, err := p.client.Complete(ctx, prompt)
		done <- completion{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case c := <-done:
		return c.text, c.err
	}
}
