package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	info := ModelInfo{CostPerMInput: 3.0, CostPerMOutput: 15.0}
	got := Cost(info, 1_000_000, 500_000)
	require.InDelta(t, 3.0+7.5, got, 0.0001)
}

func TestCostZeroTokens(t *testing.T) {
	info := ModelInfo{CostPerMInput: 3.0, CostPerMOutput: 15.0}
	require.Equal(t, 0.0, Cost(info, 0, 0))
}

func TestCoalesceAdjacentUsers(t *testing.T) {
	got := CoalesceAdjacentUsers([]Message{
		{Role: "user", Text: "hi"},
		{Role: "user", Text: "there"},
		{Role: "assistant", Text: "hello"},
		{Role: "user", Text: "again"},
	})
	require.Len(t, got, 3)
	require.Equal(t, "hi\nthere", got[0].Text)
	require.Equal(t, "again", got[2].Text)
}

func TestRegistryGetUnknownModel(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Get("missing")
	require.Error(t, err)
}
