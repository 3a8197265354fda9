// Package gemini implements the Gemini-style Provider Adapter: POST
// /v1beta/models/{model}:generateContent with an API-key query param.
package gemini

import (
	"context"
	"fmt"
	"time"

	"chatcore/internal/errors"
	"chatcore/internal/providers"

	"github.com/go-resty/resty/v2"
)

type Adapter struct {
	client *resty.Client
	apiKey string
}

func New(baseURL, apiKey string, timeout time.Duration) *Adapter {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(10 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	return &Adapter{client: client, apiKey: apiKey}
}

func (a *Adapter) ProviderTag() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type requestBody struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type responseBody struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

func (a *Adapter) Generate(ctx context.Context, history []providers.Message, model providers.ModelInfo, tools []providers.ToolDef) (providers.Result, error) {
	coalesced := providers.CoalesceAdjacentUsers(history)

	contents := make([]content, 0, len(coalesced))
	for _, m := range coalesced {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Text}}})
	}

	reqBody := requestBody{Contents: contents, GenerationConfig: generationConfig{MaxOutputTokens: model.MaxTokens}}

	var result responseBody
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("key", a.apiKey).
		SetBody(reqBody).
		SetResult(&result).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", model.ModelID))
	if err != nil {
		return providers.Result{}, errors.Wrap(err, errors.ErrTransient)
	}
	if resp.IsError() {
		return providers.Result{}, errors.NewWithDetails(
			errors.ErrUpstream,
			fmt.Sprintf("gemini returned status %d", resp.StatusCode()),
			map[string]interface{}{"status": resp.StatusCode(), "body_preview": previewOf(resp.Body())},
		)
	}

	text := ""
	finishRaw := ""
	if len(result.Candidates) > 0 {
		finishRaw = result.Candidates[0].FinishReason
		if len(result.Candidates[0].Content.Parts) > 0 {
			text = result.Candidates[0].Content.Parts[0].Text
		}
	}

	return providers.Result{
		Text:         text,
		StopReason:   bucketFor(finishRaw),
		InputTokens:  result.UsageMetadata.PromptTokenCount,
		OutputTokens: result.UsageMetadata.CandidatesTokenCount,
		ProviderData: resp.Body(),
	}, nil
}

func bucketFor(raw string) providers.FinishReason {
	switch raw {
	case "STOP":
		return providers.FinishReason{Bucket: providers.BucketStop, Raw: raw}
	case "MAX_TOKENS":
		return providers.FinishReason{Bucket: providers.BucketLength, Raw: raw}
	case "SAFETY", "RECITATION":
		return providers.FinishReason{Bucket: providers.BucketLength, Raw: raw}
	default:
		return providers.FinishReason{Bucket: providers.BucketUnknown, Raw: raw}
	}
}

func previewOf(body []byte) string {
	const max = 500
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
