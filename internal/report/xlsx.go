// Package report renders batch classification results as spreadsheets.
package report

import (
	"errors"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-templates/internal/engine"
)

// Sheet names written by WriteXLSX.
const (
	SheetResults = "Results"
	SheetFields  = "Fields"
)

// Batch item statuses.
const (
	StatusMatched   = "matched"
	StatusAmbiguous = "ambiguous"
	StatusUnmatched = "unmatched"
	StatusError     = "error"
)

var (
	resultHeader = []string{
		"document_id", "status", "template_id", "marker_score", "match_score",
		"fields_matched", "fields_total", "failed_required", "error",
	}
	fieldHeader = []string{"document_id", "template_id", "field", "value"}
)

// Status buckets a batch item by outcome.
func Status(item engine.BatchItem) string {
	if item.Err == nil {
		return StatusMatched
	}
	var amb *engine.AmbiguousTemplateError
	if errors.As(item.Err, &amb) {
		return StatusAmbiguous
	}
	var nm *engine.NoMatchError
	if errors.As(item.Err, &nm) {
		return StatusUnmatched
	}
	return StatusError
}

// WriteXLSX writes one summary row per batch item to the Results sheet and
// every extracted value of matched documents to the Fields sheet.
func WriteXLSX(path string, items []engine.BatchItem) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet(SheetResults)
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}
	fields, err := f.AddSheet(SheetFields)
	if err != nil {
		return eris.Wrap(err, "report: add fields sheet")
	}

	addStrings(results.AddRow(), resultHeader...)
	addStrings(fields.AddRow(), fieldHeader...)

	for _, item := range items {
		row := results.AddRow()
		addStrings(row, item.DocumentID, Status(item))

		if item.Result == nil {
			addStrings(row, "", "", "", "", "", "", errorText(item.Err))
			continue
		}

		res := item.Result.Result
		addStrings(row, item.Result.TemplateID)
		row.AddCell().SetFloat(res.MarkerScore)
		row.AddCell().SetFloat(res.MatchScore)
		row.AddCell().SetInt(res.FieldsMatched)
		row.AddCell().SetInt(res.FieldsTotal)
		addStrings(row, strings.Join(res.FailedRequired(), ", "), "")

		names := make([]string, 0, len(res.ExtractedData))
		for name := range res.ExtractedData {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			addStrings(fields.AddRow(), item.DocumentID, item.Result.TemplateID, name, res.ExtractedData[name])
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
