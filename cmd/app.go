package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/config"
	"github.com/sells-group/invoice-templates/internal/engine"
	"github.com/sells-group/invoice-templates/internal/ocr"
	"github.com/sells-group/invoice-templates/internal/store"
	"github.com/sells-group/invoice-templates/pkg/notion"
)

// app bundles the collaborators a command works with.
type app struct {
	store  store.Store
	docs   *ocr.DirSource
	engine *engine.Engine
}

func (a *app) Close() error {
	return a.store.Close()
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	case "dir":
		st = store.NewDir(c.Store.TemplateDir)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newApp opens the configured store and builds an engine over it. When
// withDocs is set the engine can also read documents from
// ocr.document_dir through the configured OCR provider.
func newApp(ctx context.Context, c *config.Config, withDocs bool) (*app, error) {
	if err := c.Validate("store"); err != nil {
		return nil, err
	}

	var docs *ocr.DirSource
	if withDocs {
		if err := c.Validate("ocr"); err != nil {
			return nil, err
		}
		ext, err := ocr.NewExtractor(c.OCR)
		if err != nil {
			return nil, err
		}
		docs = ocr.NewDirSource(c.OCR.DocumentDir, ext, c.OCR.Normalize)
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}

	a := &app{store: st, docs: docs}
	if docs != nil {
		a.engine = engine.New(c.Engine, nil, st, docs)
	} else {
		a.engine = engine.New(c.Engine, nil, st, nil)
	}
	return a, nil
}

func initNotion(c *config.Config) notion.Client {
	return notion.NewClient(c.Notion.Token)
}
