// Copyright (C) 2026 Questweave
// SPDX-License-Identifier: AGPL-3.0-or-later

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/questweave/questweave/internal/config"
	"github.com/questweave/questweave/internal/logger"
)

// HTTPClient scores interactions against a remote oracle endpoint.
type HTTPClient struct {
	endpoint       string
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewHTTPClient builds an oracle client from config. The per-attempt timeout
// is enforced by the underlying http.Client; the retry budget caps total
// latency.
func NewHTTPClient(cfg *config.OracleConfig) *HTTPClient {
	return &HTTPClient{
		endpoint:       cfg.Endpoint,
		client:         &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// scoreResponse is the oracle's wire format.
type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
	Error  string             `json:"error,omitempty"`
}

// Score posts the request to the oracle, retrying transient failures with
// exponential backoff. Exhausted retries surface as ErrEvaluationUnavailable.
func (c *HTTPClient) Score(ctx context.Context, req ScoreRequest) (map[string]float64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	log := logger.GetOracleLogger()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = c.maxBackoff

	var scores map[string]float64
	attempt := 0
	operation := func() error {
		attempt++
		result, err := c.scoreOnce(ctx, body)
		if err != nil {
			log.Warn().Err(err).
				Str("rubric", req.RubricName).
				Int("attempt", attempt).
				Msg("Oracle score attempt failed")
			return err
		}
		scores = result
		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluationUnavailable, err)
	}
	return scores, nil
}

func (c *HTTPClient) scoreOnce(ctx context.Context, body []byte) (map[string]float64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed scoreResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode oracle response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("oracle error: %s", parsed.Error)
	}
	if len(parsed.Scores) == 0 {
		return nil, fmt.Errorf("oracle returned no scores")
	}
	return parsed.Scores, nil
}
