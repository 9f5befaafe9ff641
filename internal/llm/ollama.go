package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"safekids-search/internal/metrics"
)

const (
	maxPromptSize   = 64 * 1024   // instructions + query
	maxResponseSize = 1024 * 1024 // generate envelope
	maxErrorBody    = 200
)

type ollamaClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// Generate issues one non-streaming POST {base}/api/generate. It never retries.
func (c *ollamaClient) Generate(parentCtx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, fmt.Errorf("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	pReq := ollamaGenerateRequest{
		Model:  c.cfg.Model,
		Prompt: joinPrompt(req),
		Stream: false,
	}
	if c.cfg.FormatJSON {
		pReq.Format = "json"
	}

	bodyBytes, err := json.Marshal(pReq)
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("llmclient: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.hasBasicAuth() {
		httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	c.logger.Debug("llm request starting",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_bytes", len(pReq.Prompt)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		err = transportError(parentCtx, ctx, err, c.cfg.UpstreamTimeout)
		c.observe(err, start)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

		msg := string(body)
		var perr ollamaErrorResponse
		if json.Unmarshal(body, &perr) == nil && perr.Error != "" {
			msg = perr.Error
		}
		err := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(msg, maxErrorBody),
			RetryAfter: parseRetryAfter(resp),
		}
		c.logger.Warn("llm upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", err.Body),
		)
		c.observe(err, start)
		return nil, err
	}

	var pResp ollamaGenerateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&pResp); err != nil {
		if ctx.Err() != nil {
			err = transportError(parentCtx, ctx, err, c.cfg.UpstreamTimeout)
		} else {
			err = fmt.Errorf("%w: decode: %w", ErrBadResponse, err)
		}
		c.observe(err, start)
		return nil, err
	}

	c.observe(nil, start)
	c.logger.Debug("llm request completed",
		zap.String("model", pResp.Model),
		zap.Int("prompt_tokens", pResp.PromptEvalCount),
		zap.Int("completion_tokens", pResp.EvalCount),
		zap.Duration("duration", time.Since(start)),
	)

	return &GenerateResponse{Text: pResp.Response, Model: pResp.Model}, nil
}

func (c *ollamaClient) observe(err error, start time.Time) {
	observe(ProviderOllama, err, start)
}

// Close releases resources held by the client.
func (c *ollamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// joinPrompt renders the single prompt payload sent to the endpoint.
func joinPrompt(req *GenerateRequest) string {
	if req.System == "" {
		return req.Prompt
	}
	return req.System + "\n\n" + req.Prompt
}

// transportError maps a failed round trip. A caller that went away gets its
// own context error back; our per-attempt deadline becomes ErrTimeout.
func transportError(parentCtx, ctx context.Context, err error, timeout time.Duration) error {
	if perr := parentCtx.Err(); perr != nil {
		return fmt.Errorf("llmclient: %w", perr)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func observe(provider string, err error, start time.Time) {
	metrics.ModelRequestsTotal.WithLabelValues(provider, outcome(err)).Inc()
	metrics.ModelRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, ErrBadResponse):
		return "bad_response"
	default:
		return "canceled"
	}
}
