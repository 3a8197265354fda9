// Package providers implements the Provider Registry (C4) and the
// uniform Adapter contract the Provider Adapters (C5) satisfy.
package providers

import (
	"chatcore/internal/errors"
)

// ModelInfo is the static catalogue entry the Provider Registry serves
// for every supported model.
type ModelInfo struct {
	ModelID         string  `json:"model_id"`
	DisplayName     string  `json:"display_name"`
	ProviderTag     string  `json:"provider_tag"`
	MaxTokens       int     `json:"max_tokens"`
	ToolsEnabled    bool    `json:"tools_enabled"`
	CostPerMInput   float64 `json:"cost_per_m_input"`
	CostPerMOutput  float64 `json:"cost_per_m_output"`
}

// Registry is a static model_id -> ModelInfo map, populated once at
// startup from config and never mutated at runtime.
type Registry struct {
	models map[string]ModelInfo
}

func NewRegistry(models []ModelInfo) *Registry {
	m := make(map[string]ModelInfo, len(models))
	for _, info := range models {
		m[info.ModelID] = info
	}
	return &Registry{models: m}
}

func (r *Registry) Get(modelID string) (ModelInfo, error) {
	info, ok := r.models[modelID]
	if !ok {
		return ModelInfo{}, errors.New(errors.ErrNotFound, "unknown model_id: "+modelID)
	}
	return info, nil
}

func (r *Registry) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(r.models))
	for _, info := range r.models {
		out = append(out, info)
	}
	return out
}

// Cost computes the USD cost of a turn from its token counts and the
// model's per-million-token rates.
func Cost(info ModelInfo, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*info.CostPerMInput +
		float64(outputTokens)/1_000_000*info.CostPerMOutput
}
