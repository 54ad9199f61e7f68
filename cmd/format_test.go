package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/invoice-templates/internal/engine"
	"github.com/sells-group/invoice-templates/internal/model"
)

func TestFormatTemplateList(t *testing.T) {
	inactive := false
	tpls := []model.Template{
		{ID: "amazon", Name: "Amazon Order", Vendor: "Amazon", Version: "1.0"},
		{ID: "acme", Name: "A very long template name that will be truncated", IsActive: &inactive},
	}

	var buf bytes.Buffer
	formatTemplateList(&buf, tpls)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "amazon")
	assert.Contains(t, out, "Amazon Order")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "false")
	assert.Contains(t, out, "...")
}

func TestFormatTestResult(t *testing.T) {
	raw := "$1,234.56"
	res := &model.TemplateTestResult{
		TemplateID:    "acme",
		Success:       false,
		MatchScore:    0.5,
		MarkerScore:   1,
		FieldsMatched: 1,
		FieldsTotal:   2,
		FieldResults: []model.FieldOutcome{
			{
				FieldName:        "total",
				Required:         true,
				Matched:          true,
				ValidationPassed: true,
				MatchMethod:      model.MatchMethodRegex,
				RawMatch:         &raw,
				Value:            &model.TypedValue{Type: model.DataTypeCurrency, Number: 1234.56},
			},
			{FieldName: "invoice_number", Required: true, Problems: []string{"required field not found"}},
		},
	}

	var buf bytes.Buffer
	formatTestResult(&buf, res)

	out := buf.String()
	assert.Contains(t, out, "Template acme: FAILED")
	assert.Contains(t, out, "match_score  0.500 (1/2 fields)")
	assert.Contains(t, out, "1234.56")
	assert.Contains(t, out, "required field not found")
}

func TestFormatBatchSummary(t *testing.T) {
	items := []engine.BatchItem{
		{DocumentID: "a.txt", Result: &model.ClassifyResult{TemplateID: "amazon", Result: model.TemplateTestResult{MatchScore: 1}}},
		{DocumentID: "b.txt", Err: &engine.NoMatchError{Considered: 1}},
		{DocumentID: "c.txt", Err: eris.New("ocr: failed")},
	}

	var buf bytes.Buffer
	formatBatchSummary(&buf, items)

	out := buf.String()
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "amazon")
	assert.Contains(t, out, "unmatched")
	assert.Contains(t, out, "3 documents: 1 matched, 0 ambiguous, 1 unmatched, 1 errors")
}

func TestFormatSyncReport(t *testing.T) {
	rep := &engine.SyncReport{
		Loaded:  []string{"a", "b"},
		Invalid: map[string]string{"z": "total: pattern must declare at least one capture group", "y": "bad"},
	}

	var buf bytes.Buffer
	formatSyncReport(&buf, 3, rep)

	out := buf.String()
	assert.Contains(t, out, "Saved 3 templates")
	assert.Contains(t, out, "Loaded:   2")
	assert.Contains(t, out, "Invalid:  2")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("y ")), bytes.Index(buf.Bytes(), []byte("z ")))
}

func TestFormatTestRecords(t *testing.T) {
	recs := []model.TestRecord{{
		ID:           "abc12345-6789-0000-0000-000000000000",
		TemplateID:   "amazon",
		TemplateHash: "deadbeefcafef00d",
		DocumentID:   "order.pdf",
		TestedAt:     time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		Result:       model.TemplateTestResult{Success: true, MatchScore: 0.75, FieldsMatched: 3, FieldsTotal: 4},
	}}

	var buf bytes.Buffer
	formatTestRecords(&buf, recs)

	out := buf.String()
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "deadbeef")
	assert.Contains(t, out, "2025-06-15 10:30")
	assert.Contains(t, out, "0.750")
	assert.Contains(t, out, "3/4")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "12345678", truncateID("1234567890"))
}
