// Package store implements the Message Store (C1): content-addressed
// entry persistence and per-chat metadata, backed by a blobstore.Store
// and fronted by an in-memory entry cache so repeated chain
// materialization doesn't re-fetch already-seen entries from the
// backing store.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chatcore/internal/blobstore"
	"chatcore/internal/dag"
	"chatcore/internal/errors"
)

// Info is the per-chat metadata record, stored at the label
// "chat:<id>" and indexed by the "chats" label for enumeration.
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Head      *dag.Hash `json:"head"`
	Icon      *string   `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const chatIndexLabel = "chats"

// chatIndex is the label-addressed list of known chat IDs, stored as its
// own blob so create/delete/list don't require a table scan over labels.
type chatIndex struct {
	IDs []string `json:"ids"`
}

type Store struct {
	backing blobstore.Store

	mu    sync.RWMutex
	cache map[dag.Hash]dag.Entry
}

func New(backing blobstore.Store) *Store {
	return &Store{
		backing: backing,
		cache:   make(map[dag.Hash]dag.Entry),
	}
}

// PutEntry content-addresses and persists an entry, returning its hash.
// Writing an entry whose content already exists is a no-op at the
// storage layer (blobstore.Put is idempotent) and is cheap here too,
// since the cache check short-circuits before re-encoding.
func (s *Store) PutEntry(ctx context.Context, e dag.Entry) (dag.Hash, error) {
	s.mu.RLock()
	if _, ok := s.cache[e.ID]; ok {
		s.mu.RUnlock()
		return e.ID, nil
	}
	s.mu.RUnlock()

	body, err := dag.Encode(e)
	if err != nil {
		return dag.Hash{}, err
	}

	id, err := s.backing.Put(ctx, body)
	if err != nil {
		return dag.Hash{}, err
	}

	s.mu.Lock()
	s.cache[id] = e
	s.mu.Unlock()

	return id, nil
}

// GetEntry implements dag.EntryGetter, checking the in-memory cache
// before falling back to the backing store.
func (s *Store) GetEntry(ctx context.Context, id dag.Hash) (dag.Entry, error) {
	s.mu.RLock()
	if e, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return e, nil
	}
	s.mu.RUnlock()

	body, err := s.backing.Get(ctx, id)
	if err != nil {
		return dag.Entry{}, err
	}

	e, err := dag.Decode(id, body)
	if err != nil {
		return dag.Entry{}, err
	}

	s.mu.Lock()
	s.cache[id] = e
	s.mu.Unlock()

	return e, nil
}

// ListChatIDs returns every known chat ID in creation order.
func (s *Store) ListChatIDs(ctx context.Context) ([]string, error) {
	idx, err := s.readChatIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.IDs, nil
}

// GetChatInfo reads a chat's metadata record.
func (s *Store) GetChatInfo(ctx context.Context, chatID string) (Info, error) {
	id, ok, err := s.backing.GetByLabel(ctx, chatLabel(chatID))
	if err != nil {
		return Info{}, err
	}
	if !ok {
		return Info{}, errors.New(errors.ErrNotFound, "chat not found: "+chatID)
	}

	body, err := s.backing.Get(ctx, id)
	if err != nil {
		return Info{}, err
	}

	var info Info
	if err := json.Unmarshal(body, &info); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrDecode)
	}
	return info, nil
}

// PutChatInfo writes a chat's metadata record and repoints its label at
// the new content, implementing the replace-at-label semantics a head
// update requires.
func (s *Store) PutChatInfo(ctx context.Context, info Info) error {
	body, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, errors.ErrDecode)
	}

	id, err := s.backing.Put(ctx, body)
	if err != nil {
		return err
	}

	return s.backing.ReplaceAtLabel(ctx, chatLabel(info.ID), id)
}

// CreateChat registers a new chat ID in the index and writes its
// initial metadata. A failure to update the index after the metadata
// write succeeds is logged by the caller (chat.Registry) and does not
// roll back the metadata write — the chat becomes reachable again once
// the index is repaired, rather than being lost outright.
func (s *Store) CreateChat(ctx context.Context, info Info) error {
	if err := s.PutChatInfo(ctx, info); err != nil {
		return err
	}
	return s.addToIndex(ctx, info.ID)
}

// DeleteChat removes a chat from the index. Its blobs remain in the
// backing store (DAG garbage collection is explicitly out of scope).
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	return s.removeFromIndex(ctx, chatID)
}

func (s *Store) readChatIndex(ctx context.Context) (chatIndex, error) {
	id, ok, err := s.backing.GetByLabel(ctx, chatIndexLabel)
	if err != nil {
		return chatIndex{}, err
	}
	if !ok {
		return chatIndex{}, nil
	}
	body, err := s.backing.Get(ctx, id)
	if err != nil {
		return chatIndex{}, err
	}
	var idx chatIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return chatIndex{}, errors.Wrap(err, errors.ErrDecode)
	}
	return idx, nil
}

func (s *Store) writeChatIndex(ctx context.Context, idx chatIndex) error {
	body, err := json.Marshal(idx)
	if err != nil {
		return errors.Wrap(err, errors.ErrDecode)
	}
	id, err := s.backing.Put(ctx, body)
	if err != nil {
		return err
	}
	return s.backing.ReplaceAtLabel(ctx, chatIndexLabel, id)
}

func (s *Store) addToIndex(ctx context.Context, chatID string) error {
	idx, err := s.readChatIndex(ctx)
	if err != nil {
		return err
	}
	for _, id := range idx.IDs {
		if id == chatID {
			return nil
		}
	}
	idx.IDs = append(idx.IDs, chatID)
	return s.writeChatIndex(ctx, idx)
}

func (s *Store) removeFromIndex(ctx context.Context, chatID string) error {
	idx, err := s.readChatIndex(ctx)
	if err != nil {
		return err
	}
	filtered := idx.IDs[:0]
	for _, id := range idx.IDs {
		if id != chatID {
			filtered = append(filtered, id)
		}
	}
	idx.IDs = filtered
	return s.writeChatIndex(ctx, idx)
}

func chatLabel(chatID string) string {
	return "chat:" + chatID
}
