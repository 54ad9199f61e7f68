package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/extract"
	"github.com/sells-group/invoice-templates/internal/matcher"
	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
	"github.com/sells-group/invoice-templates/internal/validate"
)

// Evaluate runs identification, extraction and validation of one compiled
// template against text. Identification is diagnostic: every field is
// extracted whether or not the markers matched.
func Evaluate(ct *patterns.CompiledTemplate, text string) *model.TemplateTestResult {
	return evaluate(ct, text, matcher.Identify(text, ct))
}

func evaluate(ct *patterns.CompiledTemplate, text string, ident model.IdentificationReport) *model.TemplateTestResult {
	res := &model.TemplateTestResult{
		TemplateID:     ct.ID(),
		MarkerScore:    ident.Score,
		FieldsTotal:    len(ct.Fields),
		ExtractedData:  make(map[string]string, len(ct.Fields)),
		Identification: ident,
		FieldResults:   make([]model.FieldOutcome, 0, len(ct.Fields)),
	}

	success := ident.Identified
	for i := range ct.Fields {
		out := evaluateField(text, &ct.Fields[i])
		if out.Matched {
			res.FieldsMatched++
			res.ExtractedData[out.FieldName] = out.Display()
		}
		if out.Required && !out.ValidationPassed {
			success = false
		}
		res.FieldResults = append(res.FieldResults, out)
	}

	if res.FieldsTotal > 0 {
		res.MatchScore = float64(res.FieldsMatched) / float64(res.FieldsTotal)
	}
	res.Success = success
	return res
}

func evaluateField(text string, cf *patterns.CompiledField) model.FieldOutcome {
	f := cf.Field
	out := model.FieldOutcome{
		FieldName:   f.FieldName,
		DisplayName: f.Label(),
		Required:    f.IsRequired(),
	}

	hit := extract.Field(text, cf)
	if hit.Found {
		raw := hit.Raw
		out.RawMatch = &raw
		out.Matched = true
		out.MatchMethod = hit.Method
	}

	out.Value, out.Problems = validate.Field(cf, hit.Raw, hit.Found)
	out.ValidationPassed = len(out.Problems) == 0
	return out
}

// TestTemplate runs one named template against document text. The result
// is always complete, even when success is false.
func (e *Engine) TestTemplate(ctx context.Context, templateID, text string) (*model.TemplateTestResult, error) {
	ct, err := e.compiled(ctx, templateID)
	if err != nil {
		return nil, err
	}

	res := Evaluate(ct, text)
	zap.L().Info("engine: template tested",
		zap.String("template_id", templateID),
		zap.Bool("success", res.Success),
		zap.Float64("match_score", res.MatchScore),
		zap.Float64("marker_score", res.MarkerScore),
		zap.Int("fields_matched", res.FieldsMatched),
		zap.Int("fields_total", res.FieldsTotal),
	)
	return res, nil
}

// TestDocument runs one named template against the OCR text of a stored
// document.
func (e *Engine) TestDocument(ctx context.Context, templateID, documentID string) (*model.TemplateTestResult, error) {
	text, err := e.documentText(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return e.TestTemplate(ctx, templateID, text)
}
