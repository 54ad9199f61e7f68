// Package engine selects the template that fits a document and runs field
// extraction against it.
package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/config"
	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
)

// TemplateSource supplies template definitions. GetTemplate returns
// (nil, nil) when the id is unknown.
type TemplateSource interface {
	ListTemplates(ctx context.Context) ([]model.Template, error)
	GetTemplate(ctx context.Context, templateID string) (*model.Template, error)
}

// DocumentSource supplies OCR text for a document id.
type DocumentSource interface {
	GetDocumentText(ctx context.Context, documentID string) (string, error)
}

// Engine runs template tests and auto-classification. Its only state is
// the pattern library cache.
type Engine struct {
	cfg       config.EngineConfig
	lib       *patterns.Library
	templates TemplateSource
	documents DocumentSource
}

// New creates an Engine. templates may be nil when the library is filled
// through Load; documents may be nil when only text-based operations are
// used.
func New(cfg config.EngineConfig, lib *patterns.Library, templates TemplateSource, documents DocumentSource) *Engine {
	if lib == nil {
		lib = patterns.NewLibrary()
	}
	return &Engine{
		cfg:       cfg,
		lib:       lib,
		templates: templates,
		documents: documents,
	}
}

// Library returns the engine's pattern library.
func (e *Engine) Library() *patterns.Library {
	return e.lib
}

// compiled returns the compiled form of templateID. The source is
// authoritative; ids it does not know fall back to templates loaded
// directly into the library.
func (e *Engine) compiled(ctx context.Context, templateID string) (*patterns.CompiledTemplate, error) {
	if e.templates != nil {
		t, err := e.templates.GetTemplate(ctx, templateID)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: get template %q", templateID)
		}
		if t != nil {
			return e.lib.Load(*t)
		}
	}
	if ct, ok := e.lib.Get(templateID); ok {
		return ct, nil
	}
	return nil, eris.Wrapf(ErrTemplateNotFound, "engine: template %q", templateID)
}

func (e *Engine) documentText(ctx context.Context, documentID string) (string, error) {
	if e.documents == nil {
		return "", ErrNoDocumentSource
	}
	text, err := e.documents.GetDocumentText(ctx, documentID)
	if err != nil {
		return "", eris.Wrapf(err, "engine: get document %q", documentID)
	}
	return text, nil
}
