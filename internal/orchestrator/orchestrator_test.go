package orchestrator

import (
	"context"
	"testing"
	"time"

	"chatcore/internal/blobstore/memory"
	"chatcore/internal/chat"
	"chatcore/internal/dag"
	"chatcore/internal/providers"
	"chatcore/internal/store"

	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	result providers.Result
	err    error
}

func (f *fakeAdapter) ProviderTag() string { return "fake" }
func (f *fakeAdapter) Generate(ctx context.Context, history []providers.Message, model providers.ModelInfo, tools []providers.ToolDef) (providers.Result, error) {
	return f.result, f.err
}

type fakeRouter struct {
	adapter providers.Adapter
	info    providers.ModelInfo
}

func (r *fakeRouter) AdapterFor(modelID string) (providers.Adapter, providers.ModelInfo, error) {
	return r.adapter, r.info, nil
}

func setup(t *testing.T, adapter providers.Adapter) (*Orchestrator, *chat.Registry, string) {
	t.Helper()
	s := store.New(memory.New())
	registry := chat.New(s)
	info, err := registry.Create(context.Background(), "Test Chat", nil)
	require.NoError(t, err)

	router := &fakeRouter{adapter: adapter, info: providers.ModelInfo{ModelID: "m1", CostPerMInput: 1, CostPerMOutput: 2}}
	return New(s, registry, router, nil, "m1"), registry, info.ID
}

func TestAppendUserThenGenerateResponse(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{result: providers.Result{
		Text:         "hi back",
		StopReason:   providers.FinishReason{Bucket: providers.BucketStop, Raw: "stop"},
		InputTokens:  10,
		OutputTokens: 5,
	}}
	o, registry, chatID := setup(t, adapter)

	userEntry, err := o.AppendUser(ctx, chatID, "hello")
	require.NoError(t, err)
	require.Equal(t, dag.RoleUser, userEntry.Data.Role())

	assistantEntry, err := o.GenerateResponse(ctx, chatID, "m1", nil)
	require.NoError(t, err)
	require.Equal(t, dag.RoleAssistant, assistantEntry.Data.Role())
	require.Equal(t, []dag.Hash{userEntry.ID}, assistantEntry.Parents)

	data := assistantEntry.Data.(dag.AssistantData)
	require.Equal(t, "hi back", data.Text)
	require.InDelta(t, 10.0/1_000_000*1+5.0/1_000_000*2, data.CostUSD, 0.00001)

	info, _, err := registry.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, assistantEntry.ID, *info.Head)
}

func TestGenerateResponseFallsBackToDefaultModel(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{result: providers.Result{
		Text:       "hi back",
		StopReason: providers.FinishReason{Bucket: providers.BucketStop, Raw: "stop"},
	}}
	o, _, chatID := setup(t, adapter)

	_, err := o.AppendUser(ctx, chatID, "hello")
	require.NoError(t, err)

	entry, err := o.GenerateResponse(ctx, chatID, "", nil)
	require.NoError(t, err)
	require.Equal(t, "m1", entry.Data.(dag.AssistantData).ModelID)
}

func TestGenerateResponseUnknownStopReasonErrors(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{result: providers.Result{
		Text:       "partial",
		StopReason: providers.FinishReason{Bucket: providers.BucketUnknown, Raw: "weird_reason"},
	}}
	o, _, chatID := setup(t, adapter)

	_, err := o.AppendUser(ctx, chatID, "hello")
	require.NoError(t, err)

	_, err = o.GenerateResponse(ctx, chatID, "m1", nil)
	require.Error(t, err)
}

func TestLinearizeFoldChildren(t *testing.T) {
	now := time.Now()
	chain := []dag.Entry{
		{Data: dag.UserData{Text: "question"}, CreatedAt: now},
		{Data: dag.ChildData{ChildID: "c1", Text: "child says hi"}, CreatedAt: now},
	}

	folded := Linearize(chain, true)
	require.Len(t, folded, 1)
	require.Contains(t, folded[0].Text, "Actor Responses:")

	unfolded := Linearize(chain, false)
	require.Len(t, unfolded, 2)
}
