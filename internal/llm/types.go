package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// GenerateRequest is a single-shot, non-streaming completion request.
// System carries the fixed instructions; Prompt carries the per-call input.
type GenerateRequest struct {
	System string
	Prompt string
}

func (r *GenerateRequest) Validate() error {
	if r.Prompt == "" {
		return errors.New("prompt is required")
	}
	if len(r.System)+len(r.Prompt) > maxPromptSize {
		return fmt.Errorf("prompt too large (%d bytes, max %d)", len(r.System)+len(r.Prompt), maxPromptSize)
	}
	return nil
}

type GenerateResponse struct {
	// Text is the model's raw output.
	Text  string
	Model string
}

type Client interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	Close() error
}
