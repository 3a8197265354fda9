package store

import (
	"context"
	"testing"
	"time"

	"chatcore/internal/blobstore/memory"
	"chatcore/internal/dag"

	"github.com/stretchr/testify/require"
)

func TestPutEntryGetEntryRoundTrip(t *testing.T) {
	s := New(memory.New())
	ctx := context.Background()

	entry, err := dag.NewEntry(nil, dag.UserData{Text: "hello"}, time.Now())
	require.NoError(t, err)

	id, err := s.PutEntry(ctx, entry)
	require.NoError(t, err)
	require.Equal(t, entry.ID, id)

	got, err := s.GetEntry(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entry.Data, got.Data)
}

func TestGetEntryNotFound(t *testing.T) {
	s := New(memory.New())
	_, err := s.GetEntry(context.Background(), dag.Hash{})
	require.Error(t, err)
}

func TestChatInfoLifecycle(t *testing.T) {
	s := New(memory.New())
	ctx := context.Background()

	info := Info{ID: "c1", Name: "New Chat", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.CreateChat(ctx, info))

	ids, err := s.ListChatIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, ids)

	got, err := s.GetChatInfo(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "New Chat", got.Name)

	got.Name = "Renamed"
	require.NoError(t, s.PutChatInfo(ctx, got))

	reread, err := s.GetChatInfo(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "Renamed", reread.Name)

	require.NoError(t, s.DeleteChat(ctx, "c1"))
	ids, err = s.ListChatIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestGetChatInfoUnknown(t *testing.T) {
	s := New(memory.New())
	_, err := s.GetChatInfo(context.Background(), "missing")
	require.Error(t, err)
}
