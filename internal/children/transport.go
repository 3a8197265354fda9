package children

import (
	"context"
	"fmt"
	"time"

	"chatcore/internal/errors"

	"github.com/go-resty/resty/v2"
)

// HTTPTransport dispatches child-actor RPC envelopes over HTTP, POSTing
// to a per-actor URL derived from the configured base URL — the
// production Transport, grounded on the same resty client idiom the
// Provider Adapters use.
type HTTPTransport struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPTransport(baseURL string) *HTTPTransport {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetHeader("Content-Type", "application/json")
	return &HTTPTransport{client: client, baseURL: baseURL}
}

func (t *HTTPTransport) Request(ctx context.Context, actorID string, envelope []byte) ([]byte, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(envelope).
		Post(fmt.Sprintf("%s/actors/%s/rpc", t.baseURL, actorID))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTransient)
	}
	if resp.IsError() {
		return nil, errors.New(errors.ErrUpstream, fmt.Sprintf("child actor %s returned status %d", actorID, resp.StatusCode()))
	}
	return resp.Body(), nil
}

// LocalTransport is an in-process Transport double for tests and for
// running chat-core without real spawned actors.
type LocalTransport struct {
	Handler func(actorID string, envelope []byte) ([]byte, error)
}

func (t *LocalTransport) Request(ctx context.Context, actorID string, envelope []byte) ([]byte, error) {
	if t.Handler == nil {
		return []byte(`{}`), nil
	}
	return t.Handler(actorID, envelope)
}
