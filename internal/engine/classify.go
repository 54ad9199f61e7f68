package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-templates/internal/matcher"
	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
)

// Classify picks the best template for text from the template source.
// Inactive templates are skipped unless the engine is configured to
// include them; templates that fail to compile are logged and skipped.
func (e *Engine) Classify(ctx context.Context, text string) (*model.ClassifyResult, error) {
	library, err := e.activeLibrary(ctx)
	if err != nil {
		return nil, err
	}
	return e.ClassifyWith(ctx, text, library)
}

// ClassifyWith picks the best template for text from library. Templates
// missing a required marker are excluded. Remaining candidates are ranked
// by marker score, then match score, then required-marker count. A tie on
// all three returns *AmbiguousTemplateError; no candidates returns
// *NoMatchError.
func (e *Engine) ClassifyWith(ctx context.Context, text string, library []*patterns.CompiledTemplate) (*model.ClassifyResult, error) {
	return e.classify(ctx, text, library, e.cfg.WorkerCount())
}

func (e *Engine) classify(ctx context.Context, text string, library []*patterns.CompiledTemplate, workers int) (*model.ClassifyResult, error) {
	start := time.Now()
	folded := patterns.FoldText(text)
	results := make([]*model.TemplateTestResult, len(library))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ct := range library {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ident := matcher.IdentifyFolded(folded, ct)
			if !ident.Candidate {
				return nil
			}
			results[i] = evaluate(ct, text, ident)
			zap.L().Debug("engine: candidate evaluated",
				zap.String("template_id", ct.ID()),
				zap.Float64("marker_score", results[i].MarkerScore),
				zap.Float64("match_score", results[i].MatchScore),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: classify")
	}

	type ranked struct {
		ct  *patterns.CompiledTemplate
		res *model.TemplateTestResult
	}
	var cands []ranked
	for i, res := range results {
		if res != nil {
			cands = append(cands, ranked{ct: library[i], res: res})
		}
	}
	if len(cands) == 0 {
		return nil, &NoMatchError{Considered: len(library)}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.res.MarkerScore != b.res.MarkerScore {
			return a.res.MarkerScore > b.res.MarkerScore
		}
		if a.res.MatchScore != b.res.MatchScore {
			return a.res.MatchScore > b.res.MatchScore
		}
		if a.ct.RequiredMarkers() != b.ct.RequiredMarkers() {
			return a.ct.RequiredMarkers() > b.ct.RequiredMarkers()
		}
		return a.ct.ID() < b.ct.ID()
	})

	scores := make([]model.CandidateScore, 0, len(cands))
	for _, c := range cands {
		scores = append(scores, model.CandidateScore{
			TemplateID:      c.ct.ID(),
			MarkerScore:     c.res.MarkerScore,
			MatchScore:      c.res.MatchScore,
			RequiredMarkers: c.ct.RequiredMarkers(),
		})
	}

	top := scores[0]
	tied := []string{top.TemplateID}
	for _, s := range scores[1:] {
		if s.MarkerScore == top.MarkerScore && s.MatchScore == top.MatchScore && s.RequiredMarkers == top.RequiredMarkers {
			tied = append(tied, s.TemplateID)
		}
	}
	if len(tied) > 1 {
		zap.L().Warn("engine: ambiguous classification", zap.Strings("template_ids", tied))
		return nil, &AmbiguousTemplateError{
			TemplateIDs: tied,
			MarkerScore: top.MarkerScore,
			MatchScore:  top.MatchScore,
		}
	}

	zap.L().Info("engine: document classified",
		zap.String("template_id", top.TemplateID),
		zap.Int("candidates", len(cands)),
		zap.Int("templates", len(library)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &model.ClassifyResult{
		TemplateID: top.TemplateID,
		Result:     *cands[0].res,
		Candidates: scores,
	}, nil
}

// ClassifyDocument classifies the OCR text of a stored document.
func (e *Engine) ClassifyDocument(ctx context.Context, documentID string) (*model.ClassifyResult, error) {
	text, err := e.documentText(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return e.Classify(ctx, text)
}

// loadedLibrary returns the eligible templates already in the library.
func (e *Engine) loadedLibrary() []*patterns.CompiledTemplate {
	all := e.lib.All()
	library := make([]*patterns.CompiledTemplate, 0, len(all))
	for _, ct := range all {
		if ct.Template.Active() || e.cfg.IncludeInactive {
			library = append(library, ct)
		}
	}
	return library
}

// activeLibrary loads every template from the source into the library and
// returns the compiled forms eligible for auto-classification.
func (e *Engine) activeLibrary(ctx context.Context) ([]*patterns.CompiledTemplate, error) {
	if e.templates == nil {
		return e.loadedLibrary(), nil
	}
	tpls, err := e.templates.ListTemplates(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: list templates")
	}

	library := make([]*patterns.CompiledTemplate, 0, len(tpls))
	for _, t := range tpls {
		if !t.Active() && !e.cfg.IncludeInactive {
			continue
		}
		ct, err := e.lib.Load(t)
		if err != nil {
			zap.L().Warn("engine: skipping invalid template",
				zap.String("template_id", t.ID),
				zap.Error(err),
			)
			continue
		}
		library = append(library, ct)
	}
	return library, nil
}
