// Package orchestrator implements the Turn Orchestrator (C6):
// append_user and generate_response, including history linearization and
// the finish-reason dispatch table.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatcore/internal/chat"
	"chatcore/internal/dag"
	"chatcore/internal/errors"
	"chatcore/internal/providers"
	"chatcore/internal/store"
)

// Router resolves a model_id to the Adapter that serves it, the way
// internal/providers.Registry resolves it to a ModelInfo — kept as a
// separate small interface so the orchestrator doesn't need direct
// knowledge of each provider package.
type Router interface {
	AdapterFor(modelID string) (providers.Adapter, providers.ModelInfo, error)
}

// ChildNotifier abstracts the Child-Actor Bridge's notify_children step
// so the orchestrator doesn't need direct knowledge of RPC transport —
// both append_user and generate_response notify running children after
// appending their entry, since either can become the chain's new head
// before the next turn begins.
type ChildNotifier interface {
	NotifyChildren(ctx context.Context, chatID string, head dag.Hash)
}

type Orchestrator struct {
	store          *store.Store
	registry       *chat.Registry
	router         Router
	notifier       ChildNotifier
	defaultModelID string
}

func New(s *store.Store, registry *chat.Registry, router Router, notifier ChildNotifier, defaultModelID string) *Orchestrator {
	return &Orchestrator{store: s, registry: registry, router: router, notifier: notifier, defaultModelID: defaultModelID}
}

// AppendUser appends a user turn as a new entry parented at the chat's
// current head (or as a root entry if the chat has no head yet) and
// advances the head to it.
func (o *Orchestrator) AppendUser(ctx context.Context, chatID, text string) (dag.Entry, error) {
	info, err := o.store.GetChatInfo(ctx, chatID)
	if err != nil {
		return dag.Entry{}, err
	}

	var parents []dag.Hash
	if info.Head != nil {
		parents = []dag.Hash{*info.Head}
	}

	entry, err := dag.NewEntry(parents, dag.UserData{Text: text}, time.Now())
	if err != nil {
		return dag.Entry{}, err
	}
	if _, err := o.store.PutEntry(ctx, entry); err != nil {
		return dag.Entry{}, err
	}
	if _, err := o.registry.UpdateHead(ctx, chatID, entry.ID); err != nil {
		return dag.Entry{}, err
	}
	o.notifyChildren(ctx, chatID, entry.ID)

	return entry, nil
}

// notifyChildren runs the turn pipeline's notify-children step after an
// entry becomes the new head, a no-op when no bridge is wired (e.g. in
// tests that don't exercise child actors).
func (o *Orchestrator) notifyChildren(ctx context.Context, chatID string, head dag.Hash) {
	if o.notifier == nil {
		return
	}
	o.notifier.NotifyChildren(ctx, chatID, head)
}

// GenerateResponse materializes the chat's current chain, linearizes and
// coalesces it, dispatches to the model's adapter, and appends the
// resulting AssistantData entry as the new head. The finish-reason
// bucket governs the StopReason carried on the returned entry; callers
// inspect it to decide whether a follow-up tool-execution turn is
// needed (BucketToolCalls) or the turn is complete (BucketStop) —
// length/filter reasons are surfaced as-is, never retried. An unknown
// reason fails with ErrUnknownStopReason and appends nothing.
func (o *Orchestrator) GenerateResponse(ctx context.Context, chatID, modelID string, tools []providers.ToolDef) (dag.Entry, error) {
	if modelID == "" {
		modelID = o.defaultModelID
	}

	info, err := o.store.GetChatInfo(ctx, chatID)
	if err != nil {
		return dag.Entry{}, err
	}

	chain, err := dag.MaterializeChain(ctx, o.store, info.Head)
	if err != nil {
		return dag.Entry{}, err
	}

	history := providers.CoalesceAdjacentUsers(Linearize(chain, false))

	adapter, modelInfo, err := o.router.AdapterFor(modelID)
	if err != nil {
		return dag.Entry{}, err
	}

	result, err := adapter.Generate(ctx, history, modelInfo, tools)
	if err != nil {
		return dag.Entry{}, err
	}

	if result.StopReason.Bucket == providers.BucketUnknown {
		return dag.Entry{}, errors.NewWithDetails(
			errors.ErrUnknownStopReason,
			fmt.Sprintf("provider %s returned unrecognized stop reason", adapter.ProviderTag()),
			map[string]interface{}{"raw_stop_reason": result.StopReason.Raw},
		)
	}

	var parents []dag.Hash
	if info.Head != nil {
		parents = []dag.Hash{*info.Head}
	}

	data := dag.AssistantData{
		Text:         result.Text,
		ModelID:      modelID,
		StopReason:   result.StopReason.Raw,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      providers.Cost(modelInfo, result.InputTokens, result.OutputTokens),
		ProviderData: json.RawMessage(result.ProviderData),
	}

	entry, err := dag.NewEntry(parents, data, time.Now())
	if err != nil {
		return dag.Entry{}, err
	}
	if _, err := o.store.PutEntry(ctx, entry); err != nil {
		return dag.Entry{}, err
	}
	if _, err := o.registry.UpdateHead(ctx, chatID, entry.ID); err != nil {
		return dag.Entry{}, err
	}
	o.notifyChildren(ctx, chatID, entry.ID)

	return entry, nil
}

// Linearize converts a materialized chain into the Message list an
// Adapter dispatches on. With foldChildren set, ChildData entries are
// rendered as an "Actor Responses:" suffix appended to the preceding
// message rather than as their own turn. foldChildren defaults to
// false: each entry keeps its own turn, preserving the DAG shape.
func Linearize(chain []dag.Entry, foldChildren bool) []providers.Message {
	messages := make([]providers.Message, 0, len(chain))
	for _, entry := range chain {
		switch data := entry.Data.(type) {
		case dag.UserData:
			messages = append(messages, providers.Message{Role: dag.RoleUser, Text: data.Text})
		case dag.AssistantData:
			messages = append(messages, providers.Message{Role: dag.RoleAssistant, Text: data.Text})
		case dag.ChildData:
			if foldChildren && len(messages) > 0 {
				last := &messages[len(messages)-1]
				last.Text = last.Text + "\n\nActor Responses:\n" + data.Text
				continue
			}
			messages = append(messages, providers.Message{Role: dag.RoleUser, Text: data.Text})
		}
	}
	return messages
}
