package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
	"github.com/sells-group/invoice-templates/internal/templates"
)

// SyncReport summarizes a library refresh.
type SyncReport struct {
	Loaded   []string          `json:"loaded"`
	Inactive []string          `json:"inactive"`
	Evicted  []string          `json:"evicted"`
	Invalid  map[string]string `json:"invalid"`
}

// Sync compiles every template from the source into the library and evicts
// cached entries whose template no longer exists. Compile failures are
// reported per template and never abort the refresh.
func (e *Engine) Sync(ctx context.Context) (*SyncReport, error) {
	if e.templates == nil {
		return nil, ErrNoTemplateSource
	}
	tpls, err := e.templates.ListTemplates(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list templates")
	}

	rep := &SyncReport{Invalid: make(map[string]string)}
	var mu sync.Mutex
	seen := make(map[string]bool, len(tpls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.WorkerCount())
	for _, t := range tpls {
		seen[t.ID] = true
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := e.lib.Load(t)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				rep.Invalid[t.ID] = invalidReason(err)
			case !t.Active():
				rep.Inactive = append(rep.Inactive, t.ID)
			default:
				rep.Loaded = append(rep.Loaded, t.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: sync")
	}

	for _, ct := range e.lib.All() {
		if !seen[ct.ID()] {
			e.lib.Invalidate(ct.ID())
			rep.Evicted = append(rep.Evicted, ct.ID())
		}
	}

	sort.Strings(rep.Loaded)
	sort.Strings(rep.Inactive)
	for id, reason := range rep.Invalid {
		zap.L().Warn("engine: invalid template", zap.String("template_id", id), zap.String("reason", reason))
	}
	zap.L().Info("engine: library synced",
		zap.Int("loaded", len(rep.Loaded)),
		zap.Int("inactive", len(rep.Inactive)),
		zap.Int("invalid", len(rep.Invalid)),
		zap.Int("evicted", len(rep.Evicted)),
	)
	return rep, nil
}

// LoadTemplate decodes a JSON template definition, compiles it and caches
// the compiled form. A bare template_data definition with no id is keyed
// by its content hash.
func (e *Engine) LoadTemplate(_ context.Context, definition []byte) (*patterns.CompiledTemplate, error) {
	t, err := templates.Decode(definition)
	if err != nil {
		return nil, err
	}
	return e.Load(t)
}

// Load compiles and caches a decoded template. A template with no id is
// keyed by its content hash and an empty name defaults to the id; both are
// written back to t.
func (e *Engine) Load(t *model.Template) (*patterns.CompiledTemplate, error) {
	if t.ID == "" {
		hash, err := patterns.Hash(*t)
		if err != nil {
			return nil, err
		}
		t.ID = "tpl-" + hash[:12]
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	return e.lib.Load(*t)
}

func invalidReason(err error) string {
	var tie *patterns.TemplateInvalidError
	if errors.As(err, &tie) {
		if tie.FieldName != "" {
			return tie.FieldName + ": " + tie.Reason
		}
		return tie.Reason
	}
	return err.Error()
}
