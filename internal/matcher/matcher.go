// Package matcher decides whether a template applies to a document by
// searching the document text for the template's markers.
package matcher

import (
	"strings"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
)

// Identify folds text and reports how the template's markers match it.
func Identify(text string, ct *patterns.CompiledTemplate) model.IdentificationReport {
	return IdentifyFolded(patterns.FoldText(text), ct)
}

// IdentifyFolded is Identify for text already passed through
// patterns.FoldText. Callers scoring many templates against one document
// fold once and reuse the result.
//
// Required markers are an all-or-nothing gate. When any is missing the
// score stays 0. Otherwise the score is the fraction of all markers found.
// A template with only optional markers identifies a document once one of
// them is found, but is never an auto-classify candidate.
func IdentifyFolded(folded string, ct *patterns.CompiledTemplate) model.IdentificationReport {
	rep := model.IdentificationReport{
		Markers: make([]model.MarkerResult, 0, len(ct.Markers)),
	}

	for _, m := range ct.Markers {
		found := strings.Contains(folded, m.Folded())
		rep.Markers = append(rep.Markers, model.MarkerResult{
			Text:     m.Text,
			Required: m.Required,
			Found:    found,
		})
		if m.Required {
			rep.RequiredTotal++
			if found {
				rep.RequiredFound++
			}
		} else {
			rep.OptionalTotal++
			if found {
				rep.OptionalFound++
			}
		}
	}

	total := rep.RequiredTotal + rep.OptionalTotal
	if total == 0 || rep.RequiredFound < rep.RequiredTotal {
		return rep
	}
	if rep.RequiredTotal == 0 && rep.OptionalFound == 0 {
		return rep
	}

	rep.Identified = true
	rep.Candidate = rep.RequiredTotal > 0
	rep.Score = float64(rep.RequiredFound+rep.OptionalFound) / float64(total)
	return rep
}
