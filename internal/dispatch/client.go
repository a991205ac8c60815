package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pulsechat-backend/internal/types"
)

var ErrMalformedResponse = errors.New("relay response is missing a reply")

// StatusError is a non-2xx answer from the relay.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned status %d", e.Code)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.Code, e.Message)
}

// RelayClient sends one message plus prior history and returns the reply.
type RelayClient interface {
	Relay(ctx context.Context, message string, history []types.HistoryEntry) (string, error)
}

// HTTPRelayClient calls a relay endpoint over HTTP.
type HTTPRelayClient struct {
	url  string
	http *http.Client
}

func NewHTTPRelayClient(url string, timeout time.Duration) *HTTPRelayClient {
	return &HTTPRelayClient{url: url, http: &http.Client{Timeout: timeout}}
}

func (c *HTTPRelayClient) Relay(ctx context.Context, message string, history []types.HistoryEntry) (string, error) {
	if history == nil {
		history = []types.HistoryEntry{}
	}
	body, err := json.Marshal(types.RelayRequest{Message: message, History: history})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e types.ErrorResponse
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if e.Details != "" {
			msg += ": " + e.Details
		}
		return "", &StatusError{Code: resp.StatusCode, Message: msg}
	}

	var out struct {
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Response == nil {
		return "", ErrMalformedResponse
	}
	return *out.Response, nil
}
