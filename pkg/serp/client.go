package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"serpharvest/pkg/config"
	errs "serpharvest/pkg/errors"
	"serpharvest/pkg/logger"
)

// Searcher issues one paginated query against the search provider
type Searcher interface {
	Search(ctx context.Context, query string, start, pageSize int) (*Response, error)
}

// Client is a search provider API client
type Client struct {
	httpClient *http.Client
	endpoint   string
	source     string
	username   string
	password   string
	language   string
	logger     logger.Logger
}

// NewClient creates a new search provider client
func NewClient(cfg *config.ProviderConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		endpoint: cfg.Endpoint,
		source:   cfg.Source,
		username: cfg.Username,
		password: cfg.Password,
		language: cfg.ResultsLanguage,
		logger:   log,
	}
}

// Search performs one search call. The start offset is translated into the
// provider's 1-indexed page number. One call fetches exactly one page.
func (c *Client) Search(ctx context.Context, query string, start, pageSize int) (*Response, error) {
	page := start/pageSize + 1

	payload := searchRequest{
		Source:    c.source,
		Query:     query,
		StartPage: page,
		Pages:     1,
		Parse:     true,
		Context: []contextEntry{
			{Key: "filter", Value: 0}, // Disable auto-filtering
			{Key: "results_language", Value: c.language},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to encode request: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	startTime := time.Now()
	c.logger.DebugWithFields("sending search request", map[string]interface{}{
		"query":      query,
		"start":      start,
		"start_page": page,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.ErrorWithFields("search request failed", map[string]interface{}{
			"query":    query,
			"start":    start,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("search request completed", map[string]interface{}{
		"query":    query,
		"start":    start,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &errs.Error{
			Type:    errs.TypeForStatusCode(resp.StatusCode),
			Message: fmt.Sprintf("provider returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("malformed response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return &envelope, nil
}
