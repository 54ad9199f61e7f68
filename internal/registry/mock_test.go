package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/invoice-templates/pkg/notion"
)

var _ notion.Client = (*mockTemplateDB)(nil)

// mockTemplateDB stands in for the Notion template database.
type mockTemplateDB struct {
	mock.Mock
}

// returned unpacks a (*T, error) expectation.
func returned[T any](args mock.Arguments) (*T, error) {
	v, _ := args.Get(0).(*T)
	return v, args.Error(1)
}

func (m *mockTemplateDB) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return returned[notionapi.DatabaseQueryResponse](m.Called(ctx, dbID, req))
}

func (m *mockTemplateDB) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return returned[notionapi.Page](m.Called(ctx, req))
}

func (m *mockTemplateDB) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return returned[notionapi.Page](m.Called(ctx, pageID, req))
}
