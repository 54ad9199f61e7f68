// Package notion wraps the Notion API used as the shared template registry.
package notion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-templates/internal/resilience"
)

// Client defines the Notion API operations the template registry needs.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the retry policy for rate-limited and 5xx responses.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *notionClient) {
		c.retry = cfg
	}
}

// notionClient implements Client by wrapping a *notionapi.Client.
type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a new Notion client with the given integration token.
// By default, API calls are throttled to 3 req/s (Notion's rate limit) and
// 429 or 5xx responses are retried with backoff.
func NewClient(token string, opts ...ClientOption) Client {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("notion", "api")
	c := &notionClient{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
		retry:   retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// call runs one throttled API request under the retry policy.
func call[T any](ctx context.Context, c *notionClient, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (T, error) {
		var zero T
		if err := c.wait(ctx); err != nil {
			return zero, eris.Wrap(err, "notion: rate limit")
		}
		v, err := fn(ctx)
		if err != nil {
			return zero, transient(err)
		}
		return v, nil
	})
}

// transient marks Notion API errors with a retryable status.
func transient(err error) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Status) {
		return resilience.NewTransientError(err, apiErr.Status)
	}
	return err
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := call(ctx, c, func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
		return c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("notion: query database %s", dbID))
	}
	return resp, nil
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	page, err := call(ctx, c, func(ctx context.Context) (*notionapi.Page, error) {
		return c.inner.Page.Create(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: create page")
	}
	return page, nil
}

func (c *notionClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	page, err := call(ctx, c, func(ctx context.Context) (*notionapi.Page, error) {
		return c.inner.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("notion: update page %s", pageID))
	}
	return page, nil
}
