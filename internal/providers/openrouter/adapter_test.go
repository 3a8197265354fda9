package openrouter

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
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "hi"}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 4, "completion_tokens": 2}
		}`))
	}))
	defer server.Close()

	adapter := New(server.URL, "test-key", 0)
	result, err := adapter.Generate(context.Background(), []providers.Message{{Role: "user", Text: "hi"}}, providers.ModelInfo{ModelID: "gpt-4o"}, nil)

	require.NoError(t, err)
	require.Equal(t, "hi", result.Text)
	require.Equal(t, providers.BucketToolCalls, result.StopReason.Bucket)
}
