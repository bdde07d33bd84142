// Package client provides an outbound HTTP client protected by the
// resilience core: every request passes through the named breaker and the
// retry policy, with response statuses mapped for the retry predicate.
package client

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/bulwark/internal/infrastructure/resilience"
)

// Client wraps resty with protected-call semantics. The name identifies
// the breaker guarding this upstream.
type Client struct {
	name      string
	rest      *resty.Client
	protector *resilience.Protector
}

// New creates a protected client for one upstream. Retries and timeouts
// are governed by the protector, so resty's own retry stays disabled.
func New(name, baseURL string, protector *resilience.Protector) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(0)

	return &Client{
		name:      name,
		rest:      rest,
		protector: protector,
	}
}

// Get performs a protected GET.
func (c *Client) Get(ctx context.Context, path string) (*resty.Response, error) {
	return c.do(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.Get(path)
	})
}

// Post performs a protected POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*resty.Response, error) {
	return c.do(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(body).Post(path)
	})
}

func (c *Client) do(ctx context.Context, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	result, err := c.protector.Do(ctx, c.name, func(ctx context.Context) (any, error) {
		resp, err := send(c.rest.R().SetContext(ctx))
		if err != nil {
			// Network-level failure: no status attached, retryable.
			return nil, err
		}
		if resp.StatusCode() >= http.StatusBadRequest {
			return nil, &resilience.StatusError{
				Code:    resp.StatusCode(),
				Message: http.StatusText(resp.StatusCode()),
			}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*resty.Response), nil
}
