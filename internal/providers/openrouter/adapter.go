// Package openrouter implements the OpenAI-compatible router adapter:
// POST /chat/completions with Bearer auth.
package openrouter

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
}

func New(baseURL, apiKey string, timeout time.Duration) *Adapter {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
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
	client.SetAuthToken(apiKey)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	return &Adapter{client: client}
}

func (a *Adapter) ProviderTag() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type function struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type toolDecl struct {
	Type     string   `json:"type"`
	Function function `json:"function"`
}

type requestBody struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Tools     []toolDecl    `json:"tools,omitempty"`
}

type choiceMessage struct {
	Content string `json:"content"`
}

type choice struct {
	Message      choiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type responseBody struct {
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

func (a *Adapter) Generate(ctx context.Context, history []providers.Message, model providers.ModelInfo, tools []providers.ToolDef) (providers.Result, error) {
	coalesced := providers.CoalesceAdjacentUsers(history)

	messages := make([]chatMessage, 0, len(coalesced))
	for _, m := range coalesced {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Text})
	}

	body := requestBody{Model: model.ModelID, Messages: messages, MaxTokens: model.MaxTokens}
	for _, t := range tools {
		body.Tools = append(body.Tools, toolDecl{
			Type:     "function",
			Function: function{Name: t.Name, Description: t.Description, Parameters: t.ParametersJSONSchema},
		})
	}

	var result responseBody
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return providers.Result{}, errors.Wrap(err, errors.ErrTransient)
	}
	if resp.IsError() {
		return providers.Result{}, errors.NewWithDetails(
			errors.ErrUpstream,
			fmt.Sprintf("openrouter returned status %d", resp.StatusCode()),
			map[string]interface{}{"status": resp.StatusCode(), "body_preview": previewOf(resp.Body())},
		)
	}

	text := ""
	finishRaw := ""
	if len(result.Choices) > 0 {
		text = result.Choices[0].Message.Content
		finishRaw = result.Choices[0].FinishReason
	}

	return providers.Result{
		Text:         text,
		StopReason:   bucketFor(finishRaw),
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		ProviderData: resp.Body(),
	}, nil
}

func bucketFor(raw string) providers.FinishReason {
	switch raw {
	case "stop":
		return providers.FinishReason{Bucket: providers.BucketStop, Raw: raw}
	case "tool_calls":
		return providers.FinishReason{Bucket: providers.BucketToolCalls, Raw: raw}
	case "length", "content_filter":
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
