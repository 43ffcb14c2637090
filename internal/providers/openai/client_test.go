package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body interface{}, inspect func(*ChatCompletionRequest, *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/chat/completions" && inspect != nil {
			var req ChatCompletionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			inspect(&req, r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ChatCompletion(t *testing.T) {
	var seen *ChatCompletionRequest
	var auth string
	srv := newTestServer(t, http.StatusOK, ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4",
		Choices: []Choice{
			{Index: 0, Message: ChatMessage{Role: "assistant", Content: "ciao"}, FinishReason: "stop"},
		},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}, func(req *ChatCompletionRequest, r *http.Request) {
		seen = req
		auth = r.Header.Get("Authorization")
	})

	client := NewClient("openai-gpt4", "gpt-4", providers.Config{APIKey: "sk-test", BaseURL: srv.URL})
	temp := 0.1
	maxTokens := 2000

	resp, err := client.ChatCompletion(context.Background(), &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "be terse"},
			{Role: providers.RoleUser, Content: "hello"},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	require.NoError(t, err)

	assert.Equal(t, "ciao", resp.Text())
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.Equal(t, DefaultConfidence, resp.Confidence)

	require.NotNil(t, seen)
	assert.Equal(t, "gpt-4", seen.Model)
	assert.Len(t, seen.Messages, 2)
	assert.Equal(t, 2000, *seen.MaxTokens)
	assert.Equal(t, "Bearer sk-test", auth)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		detail   ErrorDetail
		wantKind providers.ErrorKind
	}{
		{
			name:     "rate limit status",
			status:   http.StatusTooManyRequests,
			detail:   ErrorDetail{Message: "Rate limit reached", Type: "requests"},
			wantKind: providers.ErrorKindRateLimit,
		},
		{
			name:     "quota code",
			status:   http.StatusForbidden,
			detail:   ErrorDetail{Message: "You exceeded your current quota", Code: CodeInsufficientQuota},
			wantKind: providers.ErrorKindRateLimit,
		},
		{
			name:     "context length",
			status:   http.StatusBadRequest,
			detail:   ErrorDetail{Message: "too long", Code: CodeContextLengthExceeded},
			wantKind: providers.ErrorKindContextTooLarge,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			detail:   ErrorDetail{Message: "boom", Type: "server_error"},
			wantKind: providers.ErrorKindAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, ErrorResponse{Error: tt.detail}, nil)
			client := NewClient("openai-gpt4", "gpt-4", providers.Config{APIKey: "k", BaseURL: srv.URL})

			_, err := client.ChatCompletion(context.Background(), &providers.ChatRequest{
				Messages: []providers.Message{{Role: providers.RoleUser, Content: "x"}},
			})
			require.Error(t, err)

			var pe *providers.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantKind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Contains(t, err.Error(), tt.detail.Message)
		})
	}
}

func TestBuild_RequiresAPIKey(t *testing.T) {
	_, err := Build(providers.Spec{ModelID: "openai-gpt4", Model: "gpt-4", Kind: providers.KindOpenAI}, providers.Config{})
	assert.Error(t, err)

	p, err := Build(providers.Spec{ModelID: "openai-gpt4", Model: "gpt-4", Kind: providers.KindOpenAI}, providers.Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai-gpt4", p.Name())
}
