// Package relay implements the stateless chat relay: it reshapes a widget
// request into the provider's chat-completions schema, forwards it with the
// server-held credential and returns the first completion's text.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"pulsechat-backend/internal/credential"
	"pulsechat-backend/internal/prompt"
	"pulsechat-backend/internal/types"
)

const (
	allowOrigin  = "*"
	allowHeaders = "authorization, x-client-info, apikey, content-type"

	failureMessage = "Failed to get AI response"
	maxBodyBytes   = 1 << 20
)

// Completer is the slice of the go-openai client the relay depends on.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Handler struct {
	provider   Completer
	profile    prompt.Profile
	credential credential.Source
	timeout    time.Duration
	tokens     *tokenCounter
}

type Options struct {
	Provider Completer
	Profile  prompt.Profile
	// Credential is only consulted to scrub the key from error details.
	Credential credential.Source
	Timeout    time.Duration
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		provider:   opts.Provider,
		profile:    opts.Profile,
		credential: opts.Credential,
		timeout:    opts.Timeout,
		tokens:     newTokenCounter(),
	}
}

// NewProviderClient builds a go-openai client against baseURL whose bearer
// header comes from src via oauth2.Transport.
func NewProviderClient(baseURL string, src credential.Source, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	httpClient := credential.HTTPClient(context.Background(), src, nil)
	httpClient.Timeout = timeout
	cfg.HTTPClient = httpClient
	return openai.NewClientWithConfig(cfg)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
	w.Header().Set("Access-Control-Allow-Headers", allowHeaders)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, types.ErrorResponse{Error: "method not allowed"})
		return
	}

	reply, err := h.relay(r)
	if err != nil {
		log.Error().Err(err).Msg("relay: provider call failed")
		details := credential.Redact(r.Context(), h.credential, err.Error())
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: failureMessage, Details: details})
		return
	}
	writeJSON(w, http.StatusOK, types.RelayResponse{Response: reply})
}

func (h *Handler) relay(r *http.Request) (string, error) {
	message, history, err := decodeRequest(r.Body)
	if err != nil {
		return "", err
	}
	log.Info().Int("historyLength", len(history)).Msg("relay: received request")

	messages := BuildMessages(h.profile.System, history, message, h.profile.HistoryWindow)
	log.Debug().
		Int("messages", len(messages)).
		Int("promptTokens", h.tokens.count(messages)).
		Str("model", h.profile.Model).
		Msg("relay: calling provider")

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := h.provider.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       h.profile.Model,
		Messages:    messages,
		Temperature: h.profile.Style.Temperature,
		MaxTokens:   h.profile.Style.MaxTokens,
	})
	if err != nil {
		return "", describeProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("provider returned no choices")
	}
	log.Info().
		Int("completionTokens", resp.Usage.CompletionTokens).
		Int64("latencyMs", time.Since(start).Milliseconds()).
		Msg("relay: provider response received")
	return resp.Choices[0].Message.Content, nil
}

// decodeRequest tolerates a missing or non-array history by treating it as empty.
func decodeRequest(body io.Reader) (string, []types.HistoryEntry, error) {
	var raw struct {
		Message json.RawMessage `json:"message"`
		History json.RawMessage `json:"history"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&raw); err != nil {
		return "", nil, fmt.Errorf("invalid request body: %w", err)
	}
	var message string
	if err := json.Unmarshal(raw.Message, &message); err != nil || strings.TrimSpace(message) == "" {
		return "", nil, errors.New("message is required")
	}
	var history []types.HistoryEntry
	if len(raw.History) > 0 {
		if err := json.Unmarshal(raw.History, &history); err != nil {
			history = nil
		}
	}
	return message, history, nil
}

func describeProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("provider API error: %d %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("provider API error: %d %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("provider request failed: %w", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
