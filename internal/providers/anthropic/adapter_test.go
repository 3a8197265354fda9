package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatcore/internal/providers"

	"github.com/stretchr/testify/require"
)

func TestGenerateParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1", "model": "claude-3-opus", "stop_reason": "end_turn",
			"content": [{"type": "text", "text": "hello there"}],
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	adapter := New(server.URL, "test-key", 0)
	result, err := adapter.Generate(context.Background(), []providers.Message{
		{Role: "user", Text: "hi"},
	}, providers.ModelInfo{ModelID: "claude-3-opus"}, nil)

	require.NoError(t, err)
	require.Equal(t, "hello there", result.Text)
	require.Equal(t, providers.BucketStop, result.StopReason.Bucket)
	require.Equal(t, 10, result.InputTokens)
	require.Equal(t, 5, result.OutputTokens)
}

func TestGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "boom"}`))
	}))
	defer server.Close()

	adapter := New(server.URL, "test-key", 0)
	adapter.client.SetRetryCount(0)
	_, err := adapter.Generate(context.Background(), []providers.Message{{Role: "user", Text: "hi"}}, providers.ModelInfo{ModelID: "claude-3-opus"}, nil)
	require.Error(t, err)
}
