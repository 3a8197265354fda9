// Package children implements the Child-Actor Bridge (C7): starting and
// stopping child actors, the RPC envelope used to notify them, and
// folding their replies into the DAG as ChildData entries whose parent
// may override the chat's current head.
package children

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"chatcore/internal/chat"
	"chatcore/internal/dag"
	"chatcore/internal/errors"
	"chatcore/internal/store"
	"chatcore/internal/workers"
)

// Transport is the external collaborator boundary for child-actor RPC —
// an interface so a local in-process double and an HTTP-backed
// implementation can share the Bridge.
type Transport interface {
	Request(ctx context.Context, actorID string, envelope []byte) ([]byte, error)
}

// Envelope is the RPC wire shape sent to every child actor.
type Envelope struct {
	MsgType string      `json:"msg_type"` // "introduction" | "head-update"
	Data    interface{} `json:"data"`
}

// Reply is a child actor's response to an introduction or head-update,
// placed onto the DAG by Bridge.IntegrateReply via its ParentID override.
type Reply struct {
	ChildID  string          `json:"child_id"`
	Text     string          `json:"text"`
	HTML     string          `json:"html,omitempty"`
	ParentID string          `json:"parent_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// ChildInfo describes a spawned or available child actor.
type ChildInfo struct {
	ID           string `json:"id"`
	ManifestName string `json:"manifest_name"`
	Description  string `json:"description,omitempty"`
}

type Bridge struct {
	transport Transport
	pool      *workers.PoolManager
	store     *store.Store
	registry  *chat.Registry

	running map[string]ChildInfo
}

func New(transport Transport, pool *workers.PoolManager, s *store.Store, registry *chat.Registry) *Bridge {
	return &Bridge{
		transport: transport,
		pool:      pool,
		store:     s,
		registry:  registry,
		running:   make(map[string]ChildInfo),
	}
}

// StartChild spawns a child actor and sends it the introduction
// envelope, recording it as running. A non-empty-text reply is folded
// into the DAG as a ChainEntry parented at the chat's current head.
func (b *Bridge) StartChild(ctx context.Context, chatID, childID, manifestName string) (ChildInfo, error) {
	info := ChildInfo{ID: childID, ManifestName: manifestName}

	envelope, err := json.Marshal(Envelope{MsgType: "introduction", Data: info})
	if err != nil {
		return ChildInfo{}, errors.Wrap(err, errors.ErrDecode)
	}

	respBody, err := b.transport.Request(ctx, childID, envelope)
	if err != nil {
		return ChildInfo{}, errors.Wrap(err, errors.ErrUpstream)
	}

	b.running[childID] = info

	if err := b.integrateIfNonEmpty(ctx, chatID, respBody); err != nil {
		slog.Warn("failed to integrate introduction reply", "child_id", childID, "error", err)
	}

	return info, nil
}

// integrateIfNonEmpty decodes a child RPC response and folds it into the
// DAG via IntegrateReply when it carries non-empty text; a reply with no
// text (or an empty/malformed body) is a no-op.
func (b *Bridge) integrateIfNonEmpty(ctx context.Context, chatID string, respBody []byte) error {
	if len(respBody) == 0 {
		return nil
	}
	var reply Reply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return errors.Wrap(err, errors.ErrDecode)
	}
	if reply.Text == "" {
		return nil
	}
	_, err := b.IntegrateReply(ctx, chatID, reply)
	return err
}

// StopChild marks a child actor as no longer running. chat-core doesn't
// own the actor's process lifecycle beyond the RPC envelope, so this
// only updates local bookkeeping.
func (b *Bridge) StopChild(childID string) {
	delete(b.running, childID)
}

// RunningChildren lists currently started children.
func (b *Bridge) RunningChildren() []ChildInfo {
	out := make([]ChildInfo, 0, len(b.running))
	for _, info := range b.running {
		out = append(out, info)
	}
	return out
}

// NotifyChildren sends a head-update envelope to every running child and
// folds each non-empty-text reply into the DAG as a ChainEntry. Children
// are notified one at a time on the child-notify worker pool, and the
// call waits up to 30 seconds for each one before moving to the next. A
// reply that arrives after its wait has expired is still integrated
// when it arrives, which can be after NotifyChildren has returned.
func (b *Bridge) NotifyChildren(ctx context.Context, chatID string, head dag.Hash) {
	envelope, err := json.Marshal(Envelope{MsgType: "head-update", Data: map[string]string{
		"chat_id": chatID,
		"head":    head.String(),
	}})
	if err != nil {
		slog.Error("failed to encode head-update envelope", "error", err)
		return
	}

	for childID := range b.running {
		childID := childID
		err := b.pool.SubmitChildNotifyWithTimeout(ctx, func() {
			respBody, err := b.transport.Request(ctx, childID, envelope)
			if err != nil {
				slog.Warn("child notify failed", "child_id", childID, "error", err)
				return
			}
			if err := b.integrateIfNonEmpty(ctx, chatID, respBody); err != nil {
				slog.Warn("failed to integrate head-update reply", "child_id", childID, "error", err)
			}
		}, 30*time.Second)
		if err != nil {
			slog.Warn("child notify timed out", "child_id", childID, "error", err)
		}
	}
}

// IntegrateReply folds a child actor's reply into the DAG as a ChildData
// entry and makes it the chat's new head. When the reply carries a
// ParentID, it overrides the chat's current head as the new entry's sole
// parent; either way the entry has at most one parent.
func (b *Bridge) IntegrateReply(ctx context.Context, chatID string, reply Reply) (dag.Entry, error) {
	var parents []dag.Hash

	if reply.ParentID != "" {
		parentHash, err := dag.ParseHash(reply.ParentID)
		if err != nil {
			return dag.Entry{}, errors.NewWithDetails(
				errors.ErrProtocolViolation,
				"child reply parent_id is not a valid content hash",
				map[string]string{"field": "parent_id"},
			)
		}
		parents = []dag.Hash{parentHash}
	} else {
		info, err := b.store.GetChatInfo(ctx, chatID)
		if err != nil {
			return dag.Entry{}, err
		}
		if info.Head != nil {
			parents = []dag.Hash{*info.Head}
		}
	}

	entry, err := dag.NewEntry(parents, dag.ChildData{
		ChildID: reply.ChildID,
		Text:    reply.Text,
		HTML:    reply.HTML,
		Data:    reply.Data,
	}, time.Now())
	if err != nil {
		return dag.Entry{}, err
	}

	if _, err := b.store.PutEntry(ctx, entry); err != nil {
		return dag.Entry{}, err
	}
	if _, err := b.registry.UpdateHead(ctx, chatID, entry.ID); err != nil {
		return dag.Entry{}, err
	}

	return entry, nil
}
