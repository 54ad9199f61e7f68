package engine

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/invoice-templates/internal/model"
)

// mockTemplateSource implements TemplateSource for testing.
type mockTemplateSource struct {
	mock.Mock
}

func (m *mockTemplateSource) ListTemplates(ctx context.Context) ([]model.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Template), args.Error(1)
}

func (m *mockTemplateSource) GetTemplate(ctx context.Context, templateID string) (*model.Template, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

// mockDocumentSource implements DocumentSource for testing.
type mockDocumentSource struct {
	mock.Mock
}

func (m *mockDocumentSource) GetDocumentText(ctx context.Context, documentID string) (string, error) {
	args := m.Called(ctx, documentID)
	return args.String(0), args.Error(1)
}
