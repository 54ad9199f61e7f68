package engine

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-templates/internal/model"
)

// BatchItem is the classification outcome for one document of a batch.
// Exactly one of Result and Err is set.
type BatchItem struct {
	DocumentID string
	Result     *model.ClassifyResult
	Err        error
}

// ClassifyBatch classifies many stored documents against one snapshot of
// the template library. Documents run concurrently on the engine's worker
// pool; a failing document never aborts the others. Items are returned in
// input order.
func (e *Engine) ClassifyBatch(ctx context.Context, documentIDs []string) ([]BatchItem, error) {
	if e.documents == nil {
		return nil, ErrNoDocumentSource
	}
	library, err := e.activeLibrary(ctx)
	if err != nil {
		return nil, err
	}

	workers := e.cfg.WorkerCount()
	zap.L().Info("engine: classifying batch",
		zap.Int("documents", len(documentIDs)),
		zap.Int("templates", len(library)),
		zap.Int("workers", workers),
	)

	items := make([]BatchItem, len(documentIDs))
	var matched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range documentIDs {
		g.Go(func() error {
			items[i].DocumentID = id
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				failed.Add(1)
				return nil
			}

			text, err := e.documentText(gctx, id)
			if err == nil {
				// Documents already fan out across the pool, so candidates
				// of one document are evaluated in sequence.
				items[i].Result, err = e.classify(gctx, text, library, 1)
			}
			if err != nil {
				items[i].Err = err
				failed.Add(1)
				zap.L().Debug("engine: batch document unmatched", zap.String("document_id", id), zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			matched.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, eris.Wrap(err, "engine: classify batch")
	}

	zap.L().Info("engine: batch complete",
		zap.Int64("matched", matched.Load()),
		zap.Int64("unmatched", failed.Load()),
	)
	return items, nil
}
