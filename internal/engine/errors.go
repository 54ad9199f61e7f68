package engine

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrTemplateNotFound is returned when a template id is neither in the
// template source nor loaded into the library.
var ErrTemplateNotFound = eris.New("engine: template not found")

// ErrNoDocumentSource is returned by document-id operations when the
// engine was built without a DocumentSource.
var ErrNoDocumentSource = eris.New("engine: no document source configured")

// ErrNoTemplateSource is returned by Sync when the engine was built
// without a TemplateSource.
var ErrNoTemplateSource = eris.New("engine: no template source configured")

// AmbiguousTemplateError reports an auto-classify tie that survived every
// tie-break. No template is selected.
type AmbiguousTemplateError struct {
	TemplateIDs []string
	MarkerScore float64
	MatchScore  float64
}

func (e *AmbiguousTemplateError) Error() string {
	return fmt.Sprintf("engine: ambiguous template match between %s (marker_score=%.3f match_score=%.3f)",
		strings.Join(e.TemplateIDs, ", "), e.MarkerScore, e.MatchScore)
}

// NoMatchError reports that no template had all of its required markers
// present in the document.
type NoMatchError struct {
	Considered int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("engine: no template matched (%d considered)", e.Considered)
}
