package notion

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-templates/internal/resilience"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClientReturnsClient(t *testing.T) {
	c := NewClient("test-token")
	assert.NotNil(t, c)
	var _ Client = c //nolint:staticcheck // interface compliance check
}

func TestWithRateLimit(t *testing.T) {
	t.Parallel()

	c := NewClient("test-token", WithRateLimit(10)).(*notionClient)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 10, float64(c.limiter.Limit()), 0.001)
	assert.Equal(t, 10, c.limiter.Burst())

	c = NewClient("test-token", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
	assert.NoError(t, c.wait(context.Background()))
}

func TestWait_ContextCancelled(t *testing.T) {
	t.Parallel()

	c := NewClient("test-token", WithRateLimit(0.001)).(*notionClient)
	require.NoError(t, c.wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.wait(ctx))
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	c := NewClient("test-token").(*notionClient)
	assert.Equal(t, 3, c.retry.MaxAttempts)
	assert.NotNil(t, c.retry.OnRetry)

	c = NewClient("test-token", WithRetry(resilience.RetryConfig{MaxAttempts: 7})).(*notionClient)
	assert.Equal(t, 7, c.retry.MaxAttempts)
}

func TestTransient(t *testing.T) {
	t.Parallel()

	limited := transient(&notionapi.Error{Status: 429, Code: "rate_limited"})
	assert.True(t, resilience.IsTransient(limited))

	unavailable := transient(&notionapi.Error{Status: 503})
	assert.True(t, resilience.IsTransient(unavailable))

	invalid := transient(&notionapi.Error{Status: 400, Code: "validation_error"})
	assert.False(t, resilience.IsTransient(invalid))
}

func TestCall_RetriesTransient(t *testing.T) {
	t.Parallel()

	c := NewClient("test-token",
		WithRateLimit(0),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	).(*notionClient)

	attempts := 0
	got, err := call(context.Background(), c, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &notionapi.Error{Status: 502}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)

	attempts = 0
	_, err = call(context.Background(), c, func(context.Context) (string, error) {
		attempts++
		return "", &notionapi.Error{Status: 404}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
