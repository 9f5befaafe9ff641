package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIClient talks to OpenAI-compatible chat completion endpoints
// (Ollama's /v1, vLLM, hosted gateways).
type openAIClient struct {
	client     *openai.Client
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func newOpenAIClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *openAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	doer := httpClient
	if cfg.APIKey == "" && cfg.hasBasicAuth() {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		doer = &http.Client{
			Transport: &basicAuthTransport{username: cfg.Username, password: cfg.Password, base: base},
			Timeout:   httpClient.Timeout,
		}
	}
	clientCfg.HTTPClient = doer

	return &openAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		cfg:        cfg,
		httpClient: doer,
		logger:     logger,
	}
}

func (c *openAIClient) Generate(parentCtx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, fmt.Errorf("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	creq := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	if c.cfg.FormatJSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		err = c.mapError(parentCtx, ctx, err)
		observe(ProviderOpenAI, err, start)
		c.logger.Warn("llm upstream error", zap.Error(err))
		return nil, err
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices", ErrBadResponse)
		observe(ProviderOpenAI, err, start)
		return nil, err
	}

	observe(ProviderOpenAI, nil, start)
	c.logger.Debug("llm request completed",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return &GenerateResponse{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

// mapError converts go-openai errors into the package's error types.
func (c *openAIClient) mapError(parentCtx, ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: truncate(apiErr.Message, maxErrorBody)}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Body: truncate(string(reqErr.Body), maxErrorBody)}
	}

	return transportError(parentCtx, ctx, err, c.cfg.UpstreamTimeout)
}

func (c *openAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// basicAuthTransport replaces the bearer header go-openai always sets.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Del("Authorization")
	r.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(r)
}
