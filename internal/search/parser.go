package search

import (
	"context"

	"safekids-search/internal/llm"
	"safekids-search/internal/prompt"
	"safekids-search/internal/query"
)

// ModelParser asks the language model for a structured query: one
// bounded-time generate call, then strict decoding. It never retries.
type ModelParser struct {
	client llm.Client
}

func NewModelParser(client llm.Client) *ModelParser {
	return &ModelParser{client: client}
}

func (p *ModelParser) Parse(ctx context.Context, raw string) (query.ParsedQuery, error) {
	pr := prompt.Build(raw)

	resp, err := p.client.Generate(ctx, &llm.GenerateRequest{System: pr.System, Prompt: pr.User})
	if err != nil {
		return query.ParsedQuery{}, err
	}
	return query.Decode(resp.Text)
}
