package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsechat-backend/internal/credential"
	"pulsechat-backend/internal/prompt"
	"pulsechat-backend/internal/types"
)

type fakeProvider struct {
	t        *testing.T
	status   int
	body     string
	calls    int
	auth     string
	received openai.ChatCompletionRequest
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls++
	f.auth = r.Header.Get("Authorization")
	assert.Equal(f.t, "/chat/completions", r.URL.Path)
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.received))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.body))
}

func completion(text string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`, text)
}

func newTestHandler(t *testing.T, fp *fakeProvider, src credential.Source) http.Handler {
	t.Helper()
	upstream := httptest.NewServer(fp)
	t.Cleanup(upstream.Close)
	return NewHandler(Options{
		Provider:   NewProviderClient(upstream.URL, src, 5*time.Second),
		Profile:    prompt.Default(),
		Credential: src,
		Timeout:    5 * time.Second,
	})
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/relay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRelayEmptyHistory(t *testing.T) {
	fp := &fakeProvider{t: t, status: http.StatusOK, body: completion("Hello!")}
	h := newTestHandler(t, fp, credential.EnvSource{Key: "xai-secret"})

	rec := post(h, `{"message":"Hi","history":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var out types.RelayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Hello!", out.Response)

	assert.Equal(t, "Bearer xai-secret", fp.auth)
	assert.Equal(t, prompt.DefaultModel, fp.received.Model)
	assert.InDelta(t, 0.7, fp.received.Temperature, 1e-6)
	assert.Equal(t, 1000, fp.received.MaxTokens)
	require.Len(t, fp.received.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fp.received.Messages[0].Role)
	assert.Equal(t, prompt.DefaultSystem, fp.received.Messages[0].Content)
	assert.Equal(t, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "Hi"}, fp.received.Messages[1])
}

func TestRelayTrimsHistoryToWindow(t *testing.T) {
	fp := &fakeProvider{t: t, status: http.StatusOK, body: completion("ok")}
	h := newTestHandler(t, fp, credential.EnvSource{Key: "xai-secret"})

	history := make([]types.HistoryEntry, 8)
	for i := range history {
		history[i] = types.HistoryEntry{User: fmt.Sprintf("u%d", i+1), AI: fmt.Sprintf("a%d", i+1)}
	}
	body, err := json.Marshal(types.RelayRequest{Message: "next", History: history})
	require.NoError(t, err)

	rec := post(h, string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := fp.received.Messages
	require.Len(t, msgs, 12)
	var got []string
	for _, m := range msgs[1:] {
		got = append(got, m.Role+":"+m.Content)
	}
	assert.Equal(t, []string{
		"user:u4", "assistant:a4",
		"user:u5", "assistant:a5",
		"user:u6", "assistant:a6",
		"user:u7", "assistant:a7",
		"user:u8", "assistant:a8",
		"user:next",
	}, got)
}

func TestRelayNonArrayHistoryIsEmpty(t *testing.T) {
	fp := &fakeProvider{t: t, status: http.StatusOK, body: completion("ok")}
	h := newTestHandler(t, fp, credential.EnvSource{Key: "xai-secret"})

	for _, body := range []string{
		`{"message":"Hi"}`,
		`{"message":"Hi","history":"nope"}`,
		`{"message":"Hi","history":null}`,
	} {
		rec := post(h, body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		assert.Len(t, fp.received.Messages, 2, body)
	}
}

func TestRelayProviderErrorHidesKey(t *testing.T) {
	fp := &fakeProvider{
		t:      t,
		status: http.StatusUnauthorized,
		body:   `{"error":{"message":"Incorrect API key provided: xai-secret","type":"invalid_request_error"}}`,
	}
	h := newTestHandler(t, fp, credential.EnvSource{Key: "xai-secret"})

	rec := post(h, `{"message":"Hi","history":[]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotContains(t, rec.Body.String(), "xai-secret")

	var out types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Failed to get AI response", out.Error)
	assert.Contains(t, out.Details, "401")
}

func TestRelayNoChoices(t *testing.T) {
	fp := &fakeProvider{t: t, status: http.StatusOK, body: `{"id":"c1","choices":[]}`}
	h := newTestHandler(t, fp, credential.EnvSource{Key: "xai-secret"})

	rec := post(h, `{"message":"Hi"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no choices")
}

func TestRelayMissingCredential(t *testing.T) {
	fp := &fakeProvider{t: t, status: http.StatusOK, body: completion("ok")}
	h := newTestHandler(t, fp, credential.EnvSource{})

	rec := post(h, `{"message":"Hi","history":[]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, fp.calls)

	var out types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Failed to get AI response", out.Error)
	assert.Contains(t, out.Details, "not configured")
}

func TestRelayMalformedBody(t *testing.T) {
	fp := &fakeProvider{t: t, status: http.StatusOK, body: completion("ok")}
	h := newTestHandler(t, fp, credential.EnvSource{Key: "xai-secret"})

	for _, body := range []string{`not json`, `{"history":[]}`, `{"message":"   "}`} {
		rec := post(h, body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, body)
	}
	assert.Equal(t, 0, fp.calls)
}

func TestRelayPreflight(t *testing.T) {
	h := NewHandler(Options{Profile: prompt.Default()})

	req := httptest.NewRequest(http.MethodOptions, "/api/relay", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestRelayRejectsOtherMethods(t *testing.T) {
	h := NewHandler(Options{Profile: prompt.Default()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/relay", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildMessagesShortHistory(t *testing.T) {
	msgs := BuildMessages("sys", []types.HistoryEntry{{User: "a", AI: "b"}}, "c", 5)
	require.Len(t, msgs, 4)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	assert.Equal(t, "c", msgs[3].Content)
}
