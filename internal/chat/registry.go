// Package chat implements the Chat Registry (C3): the current-chat state
// machine, lifecycle transitions, and per-chat head tracking. There is
// no separate top-level head — Info.Head on the active store.Info is the
// only head.
package chat

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"chatcore/internal/dag"
	"chatcore/internal/errors"
	"chatcore/internal/store"
)

const defaultChatName = "New Chat"

// Registry owns the current-chat state machine on top of store.Store.
type Registry struct {
	store *store.Store

	mu      sync.RWMutex
	current string // "" means no chat selected
}

func New(s *store.Store) *Registry {
	return &Registry{store: s}
}

// Bootstrap ensures at least one chat exists and is selected, creating a
// default "New Chat" when the store is empty.
func (r *Registry) Bootstrap(ctx context.Context) (store.Info, error) {
	ids, err := r.store.ListChatIDs(ctx)
	if err != nil {
		return store.Info{}, err
	}

	if len(ids) == 0 {
		info, err := r.Create(ctx, defaultChatName, nil)
		if err != nil {
			return store.Info{}, err
		}
		return info, nil
	}

	r.mu.Lock()
	r.current = ids[0]
	r.mu.Unlock()

	return r.store.GetChatInfo(ctx, ids[0])
}

// Current returns the active chat's metadata, or ok=false if none is
// selected (the registry's "no chat selected" state).
func (r *Registry) Current(ctx context.Context) (info store.Info, ok bool, err error) {
	r.mu.RLock()
	id := r.current
	r.mu.RUnlock()

	if id == "" {
		return store.Info{}, false, nil
	}
	info, err = r.store.GetChatInfo(ctx, id)
	if err != nil {
		return store.Info{}, false, err
	}
	return info, true, nil
}

// Create adds a new chat with a generated ID and switches to it. IDs are
// count-based ("1", "2", ...) rather than random, per the create_chat
// rule: id = str(len(chat_ids) + 1). startingHead seeds the new chat's
// head directly, rather than leaving it unset, when the caller supplies
// one (create_chat's optional starting_head argument).
func (r *Registry) Create(ctx context.Context, name string, startingHead *dag.Hash) (store.Info, error) {
	if name == "" {
		name = defaultChatName
	}

	ids, err := r.store.ListChatIDs(ctx)
	if err != nil {
		return store.Info{}, err
	}

	now := time.Now()
	info := store.Info{
		ID:        strconv.Itoa(len(ids) + 1),
		Name:      name,
		Head:      startingHead,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.CreateChat(ctx, info); err != nil {
		// If the metadata itself is readable, only the index update
		// failed: the chat exists, so log and carry on.
		if _, getErr := r.store.GetChatInfo(ctx, info.ID); getErr != nil {
			slog.Error("create_chat failed to persist", "chat_id", info.ID, "error", err)
			return store.Info{}, err
		}
		slog.Error("create_chat failed to update the chat index", "chat_id", info.ID, "error", err)
	}

	r.mu.Lock()
	r.current = info.ID
	r.mu.Unlock()

	return info, nil
}

// Switch changes the active chat, failing if the target doesn't exist.
func (r *Registry) Switch(ctx context.Context, chatID string) (store.Info, error) {
	info, err := r.store.GetChatInfo(ctx, chatID)
	if err != nil {
		return store.Info{}, err
	}

	r.mu.Lock()
	r.current = chatID
	r.mu.Unlock()

	return info, nil
}

// Rename updates a chat's display name.
func (r *Registry) Rename(ctx context.Context, chatID, name string) (store.Info, error) {
	info, err := r.store.GetChatInfo(ctx, chatID)
	if err != nil {
		return store.Info{}, err
	}
	info.Name = name
	info.UpdatedAt = time.Now()
	if err := r.store.PutChatInfo(ctx, info); err != nil {
		return store.Info{}, err
	}
	return info, nil
}

// Delete removes a chat. If it was the active chat, the registry falls
// back to any remaining chat, or to the None state if it was the last
// one — the caller (ws.Handler) is responsible for re-bootstrapping so a
// default chat always exists for the next command.
func (r *Registry) Delete(ctx context.Context, chatID string) error {
	if err := r.store.DeleteChat(ctx, chatID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != chatID {
		return nil
	}

	remaining, err := r.store.ListChatIDs(ctx)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		r.current = ""
		return nil
	}
	r.current = remaining[0]
	return nil
}

// UpdateHead advances a chat's head to a new entry hash after a mutation
// (append_user, generate_response, or a child contribution).
func (r *Registry) UpdateHead(ctx context.Context, chatID string, head dag.Hash) (store.Info, error) {
	info, err := r.store.GetChatInfo(ctx, chatID)
	if err != nil {
		return store.Info{}, err
	}
	info.Head = &head
	info.UpdatedAt = time.Now()
	if err := r.store.PutChatInfo(ctx, info); err != nil {
		return store.Info{}, err
	}
	return info, nil
}

// List returns every chat's metadata for the chats_update broadcast.
func (r *Registry) List(ctx context.Context) ([]store.Info, error) {
	ids, err := r.store.ListChatIDs(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]store.Info, 0, len(ids))
	for _, id := range ids {
		info, err := r.store.GetChatInfo(ctx, id)
		if err != nil {
			if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrNotFound {
				slog.Warn("chat index references a missing chat, skipping", "chat_id", id)
				continue
			}
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
