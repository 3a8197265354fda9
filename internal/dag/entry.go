// Package dag implements the content-addressed, append-only DAG of
// conversation messages: entry types, content hashing, and chain
// materialization (depth-first traversal from a head down to the roots).
package dag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"chatcore/internal/errors"
)

// Hash is a content address: the SHA-256 digest of an entry's canonical
// JSON encoding.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return h.UnmarshalText([]byte(s))
}

func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return errors.Wrap(err, errors.ErrDecode)
	}
	if len(decoded) != len(h) {
		return errors.New(errors.ErrDecode, fmt.Sprintf("hash must be %d bytes, got %d", len(h), len(decoded)))
	}
	copy(h[:], decoded)
	return nil
}

// ParseHash decodes a hex-encoded content hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	err := h.UnmarshalText([]byte(s))
	return h, err
}

// Role identifies the speaker of a message entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleChild     Role = "child"
)

// EntryData is implemented by every payload variant an Entry may carry.
// The unexported marker method keeps this a closed sum type, matching
// the pattern of small typed payload structs the rest of the corpus uses
// for per-role message bodies.
type EntryData interface {
	entryData()
	Role() Role
}

// UserData is a human-authored turn.
type UserData struct {
	Text string `json:"text"`
}

func (UserData) entryData()   {}
func (UserData) Role() Role   { return RoleUser }

// AssistantData is a model-generated turn, produced by a Provider
// Adapter's Generate call.
type AssistantData struct {
	Text         string          `json:"text"`
	ModelID      string          `json:"model_id"`
	StopReason   string          `json:"stop_reason"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	CostUSD      float64         `json:"cost_usd"`
	ProviderData json.RawMessage `json:"provider_data,omitempty"`
}

func (AssistantData) entryData() {}
func (AssistantData) Role() Role { return RoleAssistant }

// ChildData is a contribution from a spawned child actor, addressed at
// its declared parent (which may not be the chat's current head).
type ChildData struct {
	ChildID string          `json:"child_id"`
	Text    string          `json:"text"`
	HTML    string          `json:"html,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (ChildData) entryData() {}
func (ChildData) Role() Role { return RoleChild }

// Entry is one node of the DAG: content-addressed, immutable once
// written, with zero or more declared parents.
type Entry struct {
	ID        Hash      `json:"id"`
	Parents   []Hash    `json:"parents"`
	Data      EntryData `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// wireEntry is the JSON-serializable shape used both for canonical
// hashing and for storage, since EntryData is an interface and needs an
// explicit discriminator to round-trip.
type wireEntry struct {
	Parents   []Hash          `json:"parents"`
	Kind      Role            `json:"kind"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEntry builds and hashes an Entry from its parents and payload. The
// ID is derived solely from (parents, kind, data, created_at) so that
// two independently constructed entries with identical content hash to
// the same address — the content-addressing invariant the store relies on.
func NewEntry(parents []Hash, data EntryData, createdAt time.Time) (Entry, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Entry{}, errors.Wrap(err, errors.ErrDecode)
	}
	w := wireEntry{Parents: parents, Kind: data.Role(), Data: raw, CreatedAt: createdAt}
	canonical, err := json.Marshal(w)
	if err != nil {
		return Entry{}, errors.Wrap(err, errors.ErrDecode)
	}
	sum := sha256.Sum256(canonical)
	return Entry{ID: Hash(sum), Parents: parents, Data: data, CreatedAt: createdAt}, nil
}

// Encode serializes an Entry to the bytes stored in the blob store.
func Encode(e Entry) ([]byte, error) {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDecode)
	}
	w := wireEntry{Parents: e.Parents, Kind: e.Data.Role(), Data: raw, CreatedAt: e.CreatedAt}
	body, err := json.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDecode)
	}
	return body, nil
}

// Decode parses stored bytes back into an Entry and stamps it with id.
// The hash is not recomputed, so bytes that do not match id are not
// detected here.
func Decode(id Hash, raw []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		return Entry{}, errors.Wrap(err, errors.ErrDecode)
	}

	var data EntryData
	switch w.Kind {
	case RoleUser:
		var d UserData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return Entry{}, errors.Wrap(err, errors.ErrDecode)
		}
		data = d
	case RoleAssistant:
		var d AssistantData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return Entry{}, errors.Wrap(err, errors.ErrDecode)
		}
		data = d
	case RoleChild:
		var d ChildData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return Entry{}, errors.Wrap(err, errors.ErrDecode)
		}
		data = d
	default:
		return Entry{}, errors.New(errors.ErrDecode, fmt.Sprintf("unknown entry kind %q", w.Kind))
	}

	return Entry{ID: id, Parents: w.Parents, Data: data, CreatedAt: w.CreatedAt}, nil
}
