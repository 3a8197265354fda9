package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"chatcore/internal/blobstore/memory"
	"chatcore/internal/chat"
	"chatcore/internal/children"
	"chatcore/internal/orchestrator"
	"chatcore/internal/providers"
	"chatcore/internal/store"
	"chatcore/internal/workers"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type noopRouter struct{}

func (noopRouter) AdapterFor(modelID string) (providers.Adapter, providers.ModelInfo, error) {
	return nil, providers.ModelInfo{}, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	s := store.New(memory.New())
	registry := chat.New(s)
	_, err := registry.Bootstrap(context.Background())
	require.NoError(t, err)

	providerRegistry := providers.NewRegistry(nil)

	pool := workers.NewPoolManager(workers.PoolConfig{ChildNotifyWorkers: 1, Workers: 1})
	t.Cleanup(pool.Shutdown)
	bridge := children.New(&children.LocalTransport{}, pool, s, registry)

	orch := orchestrator.New(s, registry, noopRouter{}, bridge, "")

	return NewHandler(NewHub(), s, registry, orch, providerRegistry, bridge, "")
}

func dialTestServer(t *testing.T, handler *Handler) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestOnConnectSendsHeadThenChatsUpdate(t *testing.T) {
	handler := newTestHandler(t)
	conn, cleanup := dialTestServer(t, handler)
	defer cleanup()

	var first, second Event
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	require.Equal(t, "head", first.Type)
	require.NotNil(t, first.CurrentChatID)
	require.Equal(t, "chats_update", second.Type)
	require.Len(t, second.Chats, 1, "bootstrap creates exactly one default chat")
	require.NotNil(t, second.CurrentChatID)
}

func TestUnknownCommandReturnsInvalidCommandError(t *testing.T) {
	handler := newTestHandler(t)
	conn, cleanup := dialTestServer(t, handler)
	defer cleanup()

	drainInitial(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "not_a_real_command"}))

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "error", event.Type)
	require.Equal(t, "Invalid command", event.Message)
}

func TestSendMessageBroadcastsMessagesUpdated(t *testing.T) {
	handler := newTestHandler(t)
	conn, cleanup := dialTestServer(t, handler)
	defer cleanup()

	drainInitial(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "send_message", "content": "hello"}))

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, "messages_updated", event.Type)
	require.NotNil(t, event.Head)
	require.NotNil(t, event.CurrentChatID)
}

func TestCreateChatBroadcastsChatCreatedThenMessagesUpdated(t *testing.T) {
	handler := newTestHandler(t)
	conn, cleanup := dialTestServer(t, handler)
	defer cleanup()

	drainInitial(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "create_chat", "name": "A"}))

	var created Event
	require.NoError(t, conn.ReadJSON(&created))
	require.Equal(t, "chat_created", created.Type)
	require.Equal(t, "2", created.Chat.ID, "bootstrap already created chat \"1\"")

	var updated Event
	require.NoError(t, conn.ReadJSON(&updated))
	require.Equal(t, "messages_updated", updated.Type)
	require.Nil(t, updated.Head, "a freshly created chat has no head yet")
}

func TestBroadcastFanOutReachesAllConnections(t *testing.T) {
	handler := newTestHandler(t)
	connA, cleanupA := dialTestServer(t, handler)
	defer cleanupA()
	drainInitial(t, connA)

	connB, cleanupB := dialTestServer(t, handler)
	defer cleanupB()
	drainInitial(t, connB)

	require.NoError(t, connA.WriteJSON(map[string]string{"type": "send_message", "content": "hello"}))

	var eventA, eventB Event
	require.NoError(t, connA.ReadJSON(&eventA))
	require.NoError(t, connB.ReadJSON(&eventB))

	require.Equal(t, "messages_updated", eventA.Type)
	require.Equal(t, "messages_updated", eventB.Type)
	require.Equal(t, *eventA.Head, *eventB.Head)
}

func drainInitial(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	require.NoError(t, conn.ReadJSON(&e))
}

