package dag

import (
	"context"
	"testing"
	"time"

	"chatcore/internal/errors"

	"github.com/stretchr/testify/require"
)

type memGetter map[Hash]Entry

func (m memGetter) GetEntry(ctx context.Context, id Hash) (Entry, error) {
	e, ok := m[id]
	if !ok {
		return Entry{}, errors.New(errors.ErrNotFound, "entry not found: "+id.String())
	}
	return e, nil
}

func mustEntry(t *testing.T, parents []Hash, data EntryData) Entry {
	t.Helper()
	e, err := NewEntry(parents, data, time.Unix(0, 0).UTC())
	require.NoError(t, err)
	return e
}

func TestNewEntryContentAddressing(t *testing.T) {
	a := mustEntry(t, nil, UserData{Text: "hello"})
	b := mustEntry(t, nil, UserData{Text: "hello"})
	require.Equal(t, a.ID, b.ID, "identical content must hash to the same address")

	c := mustEntry(t, nil, UserData{Text: "different"})
	require.NotEqual(t, a.ID, c.ID)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := mustEntry(t, nil, AssistantData{Text: "hi", ModelID: "claude-3", StopReason: "stop"})

	raw, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(original.ID, raw)
	require.NoError(t, err)
	require.Equal(t, original.ID, decoded.ID)
	require.Equal(t, original.Data, decoded.Data)
}

func TestMaterializeChainLinear(t *testing.T) {
	store := memGetter{}
	root := mustEntry(t, nil, UserData{Text: "root"})
	store[root.ID] = root

	child := mustEntry(t, []Hash{root.ID}, AssistantData{Text: "child"})
	store[child.ID] = child

	chain, err := MaterializeChain(context.Background(), store, &child.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, root.ID, chain[0].ID, "chain must be chronological, root first")
	require.Equal(t, child.ID, chain[1].ID)
}

func TestMaterializeChainMultiParentVisitsOnce(t *testing.T) {
	store := memGetter{}
	root := mustEntry(t, nil, UserData{Text: "root"})
	store[root.ID] = root

	left := mustEntry(t, []Hash{root.ID}, AssistantData{Text: "left"})
	store[left.ID] = left
	right := mustEntry(t, []Hash{root.ID}, ChildData{ChildID: "c1", Text: "right"})
	store[right.ID] = right

	merge := mustEntry(t, []Hash{left.ID, right.ID}, UserData{Text: "merge"})
	store[merge.ID] = merge

	chain, err := MaterializeChain(context.Background(), store, &merge.ID)
	require.NoError(t, err)
	require.Len(t, chain, 4, "root must be visited only once despite two parent paths")
	require.Equal(t, merge.ID, chain[len(chain)-1].ID)
}

func TestMaterializeChainNilHead(t *testing.T) {
	chain, err := MaterializeChain(context.Background(), memGetter{}, nil)
	require.NoError(t, err)
	require.Nil(t, chain)
}
