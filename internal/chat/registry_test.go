package chat

import (
	"context"
	"testing"

	"chatcore/internal/blobstore/memory"
	"chatcore/internal/store"

	"github.com/stretchr/testify/require"
)

func newRegistry() *Registry {
	return New(store.New(memory.New()))
}

func TestBootstrapCreatesDefaultChat(t *testing.T) {
	r := newRegistry()
	info, err := r.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, defaultChatName, info.Name)

	current, ok, err := r.Current(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, info.ID, current.ID)
}

func TestCreateAssignsCountBasedID(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	first, err := r.Create(ctx, "A", nil)
	require.NoError(t, err)
	require.Equal(t, "1", first.ID)

	second, err := r.Create(ctx, "B", nil)
	require.NoError(t, err)
	require.Equal(t, "2", second.ID)
}

func TestCreateSwitchDelete(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	first, err := r.Create(ctx, "First", nil)
	require.NoError(t, err)
	second, err := r.Create(ctx, "Second", nil)
	require.NoError(t, err)

	current, ok, err := r.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.ID, current.ID)

	_, err = r.Switch(ctx, first.ID)
	require.NoError(t, err)
	current, _, err = r.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, current.ID)

	require.NoError(t, r.Delete(ctx, first.ID))
	current, ok, err = r.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.ID, current.ID, "deleting the active chat falls back to a remaining chat")
}

func TestDeleteLastChatYieldsNoneState(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	info, err := r.Create(ctx, "Only", nil)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, info.ID))
	_, ok, err := r.Current(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSwitchUnknownChatFails(t *testing.T) {
	r := newRegistry()
	_, err := r.Switch(context.Background(), "does-not-exist")
	require.Error(t, err)
}
