// Package anthropic implements the Anthropic-style Provider Adapter:
// POST /v1/messages with x-api-key auth, using the same resty client
// construction idiom as the other provider adapters.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"chatcore/internal/errors"
	"chatcore/internal/providers"

	"github.com/go-resty/resty/v2"
)

const apiVersion = "2023-06-01"

type Adapter struct {
	client *resty.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Adapter {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
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
	client.SetHeader("x-api-key", apiKey)
	client.SetHeader("anthropic-version", apiVersion)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	return &Adapter{client: client}
}

func (a *Adapter) ProviderTag() string { return "anthropic" }

type messageBlock struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type requestBody struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Messages  []messageBlock `json:"messages"`
	Tools     []toolDecl     `json:"tools,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type responseBody struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
	Usage      usage          `json:"usage"`
}

func (a *Adapter) Generate(ctx context.Context, history []providers.Message, model providers.ModelInfo, tools []providers.ToolDef) (providers.Result, error) {
	coalesced := providers.CoalesceAdjacentUsers(history)

	messages := make([]messageBlock, 0, len(coalesced))
	for _, m := range coalesced {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, messageBlock{Role: role, Content: m.Text})
	}

	maxTokens := model.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	body := requestBody{Model: model.ModelID, MaxTokens: maxTokens, Messages: messages}
	for _, t := range tools {
		body.Tools = append(body.Tools, toolDecl{Name: t.Name, Description: t.Description, InputSchema: t.ParametersJSONSchema})
	}

	var result responseBody
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/v1/messages")
	if err != nil {
		return providers.Result{}, errors.Wrap(err, errors.ErrTransient)
	}
	if resp.IsError() {
		return providers.Result{}, errors.NewWithDetails(
			errors.ErrUpstream,
			fmt.Sprintf("anthropic returned status %d", resp.StatusCode()),
			map[string]interface{}{"status": resp.StatusCode(), "body_preview": previewOf(resp.Body())},
		)
	}

	text := ""
	if len(result.Content) > 0 {
		text = result.Content[0].Text
	}

	return providers.Result{
		Text:         text,
		StopReason:   bucketFor(result.StopReason),
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		ProviderData: resp.Body(),
	}, nil
}

func bucketFor(raw string) providers.FinishReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return providers.FinishReason{Bucket: providers.BucketStop, Raw: raw}
	case "tool_use":
		return providers.FinishReason{Bucket: providers.BucketToolCalls, Raw: raw}
	case "max_tokens":
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
