package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"chatcore/internal/chat"
	"chatcore/internal/children"
	"chatcore/internal/dag"
	"chatcore/internal/errors"
	"chatcore/internal/orchestrator"
	"chatcore/internal/providers"
	"chatcore/internal/store"
	"chatcore/internal/validation"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler wires the Hub to the domain components and serializes command
// processing behind a single mutex: each inbound event runs to
// completion before the next is dispatched. Upstream provider/child
// calls are awaited while the mutex is held, so concurrent commands
// queue rather than interleave.
type Handler struct {
	hub          *Hub
	store        *store.Store
	registry     *chat.Registry
	orchestrator *orchestrator.Orchestrator
	providers    *providers.Registry
	bridge       *children.Bridge
	manifestDir  string

	mu sync.Mutex
}

func NewHandler(
	hub *Hub,
	s *store.Store,
	registry *chat.Registry,
	orch *orchestrator.Orchestrator,
	providerRegistry *providers.Registry,
	bridge *children.Bridge,
	manifestDir string,
) *Handler {
	return &Handler{
		hub:          hub,
		store:        s,
		registry:     registry,
		orchestrator: orch,
		providers:    providerRegistry,
		bridge:       bridge,
		manifestDir:  manifestDir,
	}
}

// ServeHTTP upgrades the connection and runs its read loop until the
// client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := h.hub.Register(conn)
	defer h.hub.Unregister(connID)

	h.sendInitialState(r.Context(), connID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := decodeCommand(raw)
		if err != nil {
			h.hub.Send(connID, errorEvent("Invalid command"))
			continue
		}

		h.handleCommand(r.Context(), connID, cmd)
	}
}

// sendInitialState sends the current head and chats_update to a freshly
// connected client so it can render without polling.
func (h *Handler) sendInitialState(ctx context.Context, connID string) {
	if err := h.sendHead(ctx, connID); err != nil {
		slog.Warn("failed to send initial head", "error", err)
	}
	if err := h.sendChatsUpdate(ctx, connID); err != nil {
		slog.Warn("failed to send initial chats_update", "error", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, connID string, cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	switch cmd.Type {
	case cmdListChats:
		h.broadcastChatsUpdate(ctx)
	case cmdCreateChat:
		err = h.handleCreateChat(ctx, cmd)
	case cmdSwitchChat:
		err = h.handleSwitchChat(ctx, cmd)
	case cmdRenameChat:
		err = h.handleRenameChat(ctx, cmd)
	case cmdDeleteChat:
		err = h.handleDeleteChat(ctx, cmd)
	case cmdSendMessage:
		err = h.handleSendMessage(ctx, cmd)
	case cmdGenerateLLMResponse:
		err = h.handleGenerateLLMResponse(ctx, cmd)
	case cmdListModels:
		err = h.handleListModels(connID)
	case cmdGetMessage:
		err = h.handleGetMessage(ctx, connID, cmd)
	case cmdGetHead:
		err = h.sendHead(ctx, connID)
	case cmdStartChild:
		err = h.handleStartChild(ctx, cmd)
	case cmdStopChild:
		h.bridge.StopChild(cmd.ChildID)
		h.broadcastChildrenUpdate()
	case cmdListAvailableChildren:
		err = h.sendChildrenUpdate(connID)
	default:
		h.hub.Send(connID, errorEvent("Invalid command"))
		return
	}

	if err != nil {
		h.hub.Send(connID, errorEvent(messageFor(err)))
	}
}

func messageFor(err error) string {
	if appErr, ok := errors.IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// handleCreateChat implements create_chat(name?, starting_head?): create,
// switch (Registry.Create already switches), broadcast chat_created then
// messages_updated.
func (h *Handler) handleCreateChat(ctx context.Context, cmd Command) error {
	var startingHead *dag.Hash
	if cmd.StartingHead != "" {
		head, err := dag.ParseHash(cmd.StartingHead)
		if err != nil {
			return errors.New(errors.ErrBadRequest, "starting_head must be a valid content hash")
		}
		startingHead = &head
	}

	info, err := h.registry.Create(ctx, cmd.Name, startingHead)
	if err != nil {
		return err
	}

	h.hub.Broadcast(Event{Type: "chat_created", Chat: chatSummaryPtr(toChatSummary(info))})
	h.broadcastMessagesUpdated(ctx)
	return nil
}

func (h *Handler) handleSwitchChat(ctx context.Context, cmd Command) error {
	if err := validation.ValidateChatID(cmd.ChatID); err != nil {
		return err
	}
	if _, err := h.registry.Switch(ctx, cmd.ChatID); err != nil {
		return err
	}
	h.broadcastMessagesUpdated(ctx)
	return nil
}

func (h *Handler) handleRenameChat(ctx context.Context, cmd Command) error {
	if err := validation.ValidateChatID(cmd.ChatID); err != nil {
		return err
	}
	info, err := h.registry.Rename(ctx, cmd.ChatID, cmd.Name)
	if err != nil {
		return err
	}
	h.hub.Broadcast(Event{Type: "chat_renamed", Chat: chatSummaryPtr(toChatSummary(info))})
	h.broadcastChatsUpdate(ctx)
	return nil
}

func (h *Handler) handleDeleteChat(ctx context.Context, cmd Command) error {
	if err := validation.ValidateChatID(cmd.ChatID); err != nil {
		return err
	}
	if err := h.registry.Delete(ctx, cmd.ChatID); err != nil {
		return err
	}
	if _, ok, err := h.registry.Current(ctx); err == nil && !ok {
		if _, err := h.registry.Bootstrap(ctx); err != nil {
			slog.Error("re-bootstrap after deleting last chat failed", "error", err)
		}
	}
	h.hub.Broadcast(Event{Type: "chat_deleted", ChatID: cmd.ChatID})
	h.broadcastMessagesUpdated(ctx)
	return nil
}

func (h *Handler) handleSendMessage(ctx context.Context, cmd Command) error {
	if err := validation.ValidateMessageText(cmd.Content); err != nil {
		return err
	}
	chatID, err := h.resolveChatID(ctx, cmd.ChatID)
	if err != nil {
		return err
	}

	if _, err := h.orchestrator.AppendUser(ctx, chatID, validation.SanitizeString(cmd.Content)); err != nil {
		return err
	}

	h.broadcastMessagesUpdated(ctx)
	return nil
}

// handleGenerateLLMResponse implements generate_llm_response(model_id?):
// model_id is optional, the orchestrator falls back to the configured
// default model when it is omitted.
func (h *Handler) handleGenerateLLMResponse(ctx context.Context, cmd Command) error {
	if cmd.ModelID != "" {
		if err := validation.ValidateModelID(cmd.ModelID); err != nil {
			return err
		}
	}
	chatID, err := h.resolveChatID(ctx, cmd.ChatID)
	if err != nil {
		return err
	}

	if _, err := h.orchestrator.GenerateResponse(ctx, chatID, cmd.ModelID, nil); err != nil {
		return err
	}

	h.broadcastMessagesUpdated(ctx)
	return nil
}

func (h *Handler) handleListModels(connID string) error {
	return h.hub.Send(connID, Event{Type: "models", Models: h.providers.List()})
}

func (h *Handler) handleGetMessage(ctx context.Context, connID string, cmd Command) error {
	id, err := dag.ParseHash(cmd.MessageID)
	if err != nil {
		return errors.New(errors.ErrBadRequest, "message_id must be a valid content hash")
	}
	entry, err := h.store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	return h.hub.Send(connID, Event{Type: "message", Message: toEntryView(entry)})
}

// handleStartChild implements start_child(child_id, manifest_name): spawn, then
// broadcast children_update and messages_updated (the introduction reply
// may have folded a ChildData entry into the DAG as a new head).
func (h *Handler) handleStartChild(ctx context.Context, cmd Command) error {
	if cmd.ChildID == "" {
		return errors.New(errors.ErrMissingRequiredField, "child_id is required")
	}
	chatID, err := h.resolveChatID(ctx, cmd.ChatID)
	if err != nil {
		return err
	}
	if _, err := h.bridge.StartChild(ctx, chatID, cmd.ChildID, cmd.ManifestName); err != nil {
		return err
	}
	h.broadcastChildrenUpdate()
	h.broadcastMessagesUpdated(ctx)
	return nil
}

func (h *Handler) resolveChatID(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	info, ok, err := h.registry.Current(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		info, err = h.registry.Bootstrap(ctx)
		if err != nil {
			return "", err
		}
	}
	return info.ID, nil
}

// currentChatID returns the active chat's id, or "" in the None state,
// for the current_chat_id field every head/messages_updated/chats_update
// event carries.
func (h *Handler) currentChatID(ctx context.Context) (string, *string) {
	info, ok, err := h.registry.Current(ctx)
	if err != nil || !ok {
		return "", nil
	}
	return info.ID, headString(info)
}

func (h *Handler) sendHead(ctx context.Context, connID string) error {
	chatID, head := h.currentChatID(ctx)
	return h.hub.Send(connID, Event{Type: "head", Head: head, CurrentChatID: &chatID})
}

func (h *Handler) broadcastMessagesUpdated(ctx context.Context) {
	chatID, head := h.currentChatID(ctx)
	h.hub.Broadcast(Event{Type: "messages_updated", Head: head, CurrentChatID: &chatID})
}

func (h *Handler) sendChatsUpdate(ctx context.Context, connID string) error {
	infos, err := h.registry.List(ctx)
	if err != nil {
		return err
	}
	chatID, _ := h.currentChatID(ctx)
	return h.hub.Send(connID, Event{Type: "chats_update", Chats: toChatSummaries(infos), CurrentChatID: &chatID})
}

func (h *Handler) broadcastChatsUpdate(ctx context.Context) {
	infos, err := h.registry.List(ctx)
	if err != nil {
		slog.Warn("broadcastChatsUpdate failed to list chats", "error", err)
		return
	}
	chatID, _ := h.currentChatID(ctx)
	h.hub.Broadcast(Event{Type: "chats_update", Chats: toChatSummaries(infos), CurrentChatID: &chatID})
}

func toChatSummaries(infos []store.Info) []chatSummary {
	summaries := make([]chatSummary, len(infos))
	for i, info := range infos {
		summaries[i] = toChatSummary(info)
	}
	return summaries
}

func (h *Handler) sendChildrenUpdate(connID string) error {
	return h.hub.Send(connID, h.childrenUpdateEvent())
}

func (h *Handler) broadcastChildrenUpdate() {
	h.hub.Broadcast(h.childrenUpdateEvent())
}

func (h *Handler) childrenUpdateEvent() Event {
	running := make([]childView, 0)
	for _, info := range h.bridge.RunningChildren() {
		running = append(running, childView{ID: info.ID, ManifestName: info.ManifestName})
	}

	available, err := scanAvailableChildren(h.manifestDir)
	if err != nil {
		slog.Warn("failed to scan available children", "error", err)
	}

	return Event{Type: "children_update", RunningChildren: running, AvailableChildren: available}
}
