// Package store persists template definitions and template test history.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/model"
)

// ErrNotFound is returned by writes that target a missing row.
var ErrNotFound = eris.New("store: not found")

// DefaultResultLimit caps ListTestResults when no limit is given.
const DefaultResultLimit = 20

// Store defines the persistence interface for templates and test runs.
// GetTemplate and GetTestResult return (nil, nil) when the row does not
// exist.
type Store interface {
	// Templates
	ListTemplates(ctx context.Context) ([]model.Template, error)
	GetTemplate(ctx context.Context, templateID string) (*model.Template, error)
	SaveTemplate(ctx context.Context, t model.Template) error
	SaveTemplates(ctx context.Context, tpls []model.Template) (int64, error)
	DeleteTemplate(ctx context.Context, templateID string) error

	// Test history
	SaveTestResult(ctx context.Context, rec *model.TestRecord) error
	SaveTestResults(ctx context.Context, recs []model.TestRecord) (int64, error)
	ListTestResults(ctx context.Context, templateID string, limit int) ([]model.TestRecord, error)
	GetTestResult(ctx context.Context, id string) (*model.TestRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
