package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"safekids-search/internal/search"
	"safekids-search/pkg/logging/logging"
)

const (
	maxQueryLen = 200

	msgQueryType   = "query must be a string"
	msgQueryLength = "query must be between 1 and 200 characters"
	msgUnavailable = "Search is currently unavailable"
)

// SearchService is the search core as seen by the HTTP layer.
type SearchService interface {
	Search(ctx context.Context, raw string) (search.Result, error)
	Fallback(ctx context.Context, raw string) (search.Result, error)
}

// SearchHandler serves POST /api/search.
type SearchHandler struct {
	Service SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{Service: svc}
}

type searchRequest struct {
	Query any `json:"query"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Errors: []fieldError{{Field: "query", Message: msgQueryType}},
		})
		return
	}

	raw, msg := validateQuery(req.Query)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Errors: []fieldError{{Field: "query", Message: msg}},
		})
		return
	}

	res, err := h.Service.Search(ctx, raw)
	if err != nil {
		logger.Warn("search_failed", zap.Error(err))

		// the core already tried its own fallback unless the caller went away
		res, err = h.Service.Fallback(ctx, raw)
		if err != nil {
			logger.Error("search_unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, msgUnavailable)
			return
		}
	}

	logger.Info("search_served",
		zap.Bool("fallback", res.Fallback),
		zap.Int("results", len(res.Posts)),
		zap.Duration("latency", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, res)
}

// validateQuery returns the trimmed query, or a message describing why
// it is not acceptable.
func validateQuery(v any) (string, string) {
	s, ok := v.(string)
	if !ok {
		return "", msgQueryType
	}
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < 1 || n > maxQueryLen {
		return "", msgQueryLength
	}
	return s, ""
}
