package gemini

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
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "hi there"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 2}
		}`))
	}))
	defer server.Close()

	adapter := New(server.URL, "test-key", 0)
	result, err := adapter.Generate(context.Background(), []providers.Message{{Role: "user", Text: "hi"}}, providers.ModelInfo{ModelID: "gemini-1.5-pro"}, nil)

	require.NoError(t, err)
	require.Equal(t, "hi there", result.Text)
	require.Equal(t, providers.BucketStop, result.StopReason.Bucket)
	require.Equal(t, 3, result.InputTokens)
}
