package ws

import (
	"time"

	"chatcore/internal/dag"
	"chatcore/internal/providers"
	"chatcore/internal/store"
)

// Event is the discriminated envelope every outbound WS frame encodes,
// matching Command's "type" discrimination style. Message doubles as
// the `message` event's ChainEntry payload and the `error` event's
// string payload — both wire under the same "message" key.
type Event struct {
	Type string `json:"type"`

	Head          *string `json:"head,omitempty"`
	CurrentChatID *string `json:"current_chat_id,omitempty"`

	Chats   []chatSummary         `json:"chats,omitempty"`
	Chat    *chatSummary          `json:"chat,omitempty"`
	ChatID  string                `json:"chat_id,omitempty"`
	Models  []providers.ModelInfo `json:"models,omitempty"`
	Message interface{}           `json:"message,omitempty"`

	AvailableChildren []childView `json:"available_children,omitempty"`
	RunningChildren   []childView `json:"running_children,omitempty"`
}

type chatSummary struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Icon *string `json:"icon"`
}

type childView struct {
	ID           string `json:"id"`
	ManifestName string `json:"manifest_name"`
	Description  string `json:"description,omitempty"`
}

type entryView struct {
	ID        string      `json:"id"`
	Parents   []string    `json:"parents"`
	Role      dag.Role    `json:"role"`
	Data      interface{} `json:"data"`
	CreatedAt time.Time   `json:"created_at"`
}

func toChatSummary(info store.Info) chatSummary {
	return chatSummary{ID: info.ID, Name: info.Name, Icon: info.Icon}
}

func chatSummaryPtr(s chatSummary) *chatSummary { return &s }

func toEntryView(e dag.Entry) entryView {
	parents := make([]string, len(e.Parents))
	for i, p := range e.Parents {
		parents[i] = p.String()
	}
	return entryView{
		ID:        e.ID.String(),
		Parents:   parents,
		Role:      e.Data.Role(),
		Data:      e.Data,
		CreatedAt: e.CreatedAt,
	}
}

func headString(info store.Info) *string {
	if info.Head == nil {
		return nil
	}
	s := info.Head.String()
	return &s
}

func errorEvent(message string) Event {
	return Event{Type: "error", Message: message}
}
