package report

import (
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-templates/internal/engine"
	"github.com/sells-group/invoice-templates/internal/model"
)

func sampleItems() []engine.BatchItem {
	return []engine.BatchItem{
		{
			DocumentID: "a.pdf",
			Result: &model.ClassifyResult{
				TemplateID: "amazon",
				Result: model.TemplateTestResult{
					TemplateID:    "amazon",
					Success:       true,
					MarkerScore:   1,
					MatchScore:    0.5,
					FieldsMatched: 1,
					FieldsTotal:   2,
					ExtractedData: map[string]string{"total": "42.00", "invoice_number": "INV-1"},
				},
			},
		},
		{DocumentID: "b.pdf", Err: &engine.NoMatchError{Considered: 3}},
		{DocumentID: "c.pdf", Err: &engine.AmbiguousTemplateError{TemplateIDs: []string{"x", "y"}}},
		{DocumentID: "d.pdf", Err: eris.New("ocr: boom")},
	}
}

func TestStatus(t *testing.T) {
	items := sampleItems()
	assert.Equal(t, StatusMatched, Status(items[0]))
	assert.Equal(t, StatusUnmatched, Status(items[1]))
	assert.Equal(t, StatusAmbiguous, Status(items[2]))
	assert.Equal(t, StatusError, Status(items[3]))
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.xlsx")
	require.NoError(t, WriteXLSX(path, sampleItems()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	results, ok := f.Sheet[SheetResults]
	require.True(t, ok)
	require.Len(t, results.Rows, 5)
	assert.Equal(t, resultHeader, cellStrings(results.Rows[0]))

	matched := results.Rows[1]
	assert.Equal(t, "a.pdf", matched.Cells[0].String())
	assert.Equal(t, StatusMatched, matched.Cells[1].String())
	assert.Equal(t, "amazon", matched.Cells[2].String())
	score, err := matched.Cells[4].Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 0.0001)

	unmatched := cellStrings(results.Rows[2])
	assert.Equal(t, StatusUnmatched, unmatched[1])
	assert.Contains(t, unmatched[len(unmatched)-1], "no template matched")

	assert.Equal(t, StatusError, results.Rows[4].Cells[1].String())

	fields, ok := f.Sheet[SheetFields]
	require.True(t, ok)
	require.Len(t, fields.Rows, 3)
	assert.Equal(t, []string{"a.pdf", "amazon", "invoice_number", "INV-1"}, cellStrings(fields.Rows[1]))
	assert.Equal(t, []string{"a.pdf", "amazon", "total", "42.00"}, cellStrings(fields.Rows[2]))
}

func TestWriteXLSX_BadPath(t *testing.T) {
	err := WriteXLSX(filepath.Join(t.TempDir(), "missing", "out.xlsx"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report: save")
}
