package providers

import (
	"context"

	"chatcore/internal/dag"
)

// Message is a linearized, coalesced history entry ready for dispatch —
// the shape every Adapter's Generate receives, independent of how the
// orchestrator derived it from the DAG.
type Message struct {
	Role dag.Role
	Text string
}

// ToolDef is the uniform tool declaration forwarded to providers whose
// ModelInfo.ToolsEnabled is true.
type ToolDef struct {
	Name               string
	Description        string
	ParametersJSONSchema map[string]interface{}
}

// Result carries everything the orchestrator needs to build an
// AssistantData entry and decide how to dispatch on the finish reason.
type Result struct {
	Text         string
	StopReason   FinishReason
	InputTokens  int
	OutputTokens int
	ProviderData []byte
}

// FinishReason normalizes each provider's native stop/finish reason into
// one of four dispatch buckets, preserving the raw string for
// UnknownStopReason reporting.
type FinishReason struct {
	Bucket Bucket
	Raw    string
}

type Bucket string

const (
	BucketStop      Bucket = "stop"
	BucketToolCalls Bucket = "tool_calls"
	BucketLength    Bucket = "length_or_filter"
	BucketUnknown   Bucket = "unknown"
)

// Adapter is the uniform contract every provider implementation
// satisfies.
type Adapter interface {
	ProviderTag() string
	Generate(ctx context.Context, history []Message, model ModelInfo, tools []ToolDef) (Result, error)
}

// CoalesceAdjacentUsers merges consecutive User-role messages into one,
// joined by a single newline. The orchestrator applies it before
// dispatch and each adapter applies it again; on already-coalesced
// history the second pass changes nothing.
func CoalesceAdjacentUsers(history []Message) []Message {
	if len(history) == 0 {
		return history
	}
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if n := len(out); n > 0 && out[n-1].Role == dag.RoleUser && m.Role == dag.RoleUser {
			out[n-1].Text = out[n-1].Text + "\n" + m.Text
			continue
		}
		out = append(out, m)
	}
	return out
}
