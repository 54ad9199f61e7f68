package model

import (
	"strconv"
	"time"
)

// TypedValue is a raw capture coerced into a field's declared data type.
// Only the member matching Type is meaningful.
type TypedValue struct {
	Type    DataType  `json:"type"`
	Text    string    `json:"text,omitempty"`
	Integer int64     `json:"integer,omitempty"`
	Number  float64   `json:"number,omitempty"`
	Bool    bool      `json:"bool,omitempty"`
	Date    time.Time `json:"date,omitzero"`
}

// Display renders the value the way extracted_data reports it.
func (v TypedValue) Display() string {
	switch v.Type {
	case DataTypeInteger:
		return strconv.FormatInt(v.Integer, 10)
	case DataTypeFloat:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case DataTypeCurrency:
		return strconv.FormatFloat(v.Number, 'f', 2, 64)
	case DataTypeBoolean:
		return strconv.FormatBool(v.Bool)
	case DataTypeDate:
		return v.Date.Format(time.DateOnly)
	default:
		return v.Text
	}
}

// Numeric returns the value as a float64 for numeric data types.
func (v TypedValue) Numeric() (float64, bool) {
	switch v.Type {
	case DataTypeInteger:
		return float64(v.Integer), true
	case DataTypeFloat, DataTypeCurrency:
		return v.Number, true
	}
	return 0, false
}

// Match methods recorded on a FieldOutcome.
const (
	MatchMethodRegex       = "regex"
	MatchMethodAlternative = "alternative_regex"
)

// FieldOutcome is the per-field, per-document extraction result.
// Matched reflects only whether a raw value was captured; coercion and
// constraint failures only clear ValidationPassed.
type FieldOutcome struct {
	FieldName        string      `json:"field_name"`
	DisplayName      string      `json:"display_name"`
	Required         bool        `json:"required"`
	RawMatch         *string     `json:"raw_match,omitempty"`
	Value            *TypedValue `json:"typed_value,omitempty"`
	Matched          bool        `json:"matched"`
	ValidationPassed bool        `json:"validation_passed"`
	MatchMethod      string      `json:"match_method,omitempty"`
	Problems         []string    `json:"problems,omitempty"`
}

// Display returns the extracted_data string for a matched field: the typed
// value when coercion succeeded, otherwise the raw capture.
func (o *FieldOutcome) Display() string {
	if o.Value != nil {
		return o.Value.Display()
	}
	if o.RawMatch != nil {
		return *o.RawMatch
	}
	return ""
}

// MarkerResult reports whether one marker was found.
type MarkerResult struct {
	Text     string `json:"text"`
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
}

// IdentificationReport is the Identification Matcher's verdict for one
// template against one document.
type IdentificationReport struct {
	Markers       []MarkerResult `json:"markers"`
	RequiredTotal int            `json:"required_total"`
	RequiredFound int            `json:"required_found"`
	OptionalTotal int            `json:"optional_total"`
	OptionalFound int            `json:"optional_found"`
	// Identified is true when at least one marker is declared and every
	// required marker is present.
	Identified bool `json:"identified"`
	// Candidate additionally requires at least one required marker.
	Candidate bool    `json:"candidate"`
	Score     float64 `json:"marker_score"`
}

// MarkerScore returns the marker score when the template is an
// auto-classify candidate.
func (r *IdentificationReport) MarkerScore() (float64, bool) {
	if !r.Candidate {
		return 0, false
	}
	return r.Score, true
}

// MissingRequired lists required markers that were not found.
func (r *IdentificationReport) MissingRequired() []string {
	var out []string
	for _, m := range r.Markers {
		if m.Required && !m.Found {
			out = append(out, m.Text)
		}
	}
	return out
}

// TemplateTestResult aggregates one template's evaluation against one document.
type TemplateTestResult struct {
	TemplateID     string               `json:"template_id"`
	Success        bool                 `json:"success"`
	MatchScore     float64              `json:"match_score"`
	MarkerScore    float64              `json:"marker_score"`
	FieldsMatched  int                  `json:"fields_matched"`
	FieldsTotal    int                  `json:"fields_total"`
	ExtractedData  map[string]string    `json:"extracted_data"`
	Identification IdentificationReport `json:"identification"`
	FieldResults   []FieldOutcome       `json:"field_results"`
}

// FailedRequired lists required fields whose validation did not pass.
func (r *TemplateTestResult) FailedRequired() []string {
	var out []string
	for _, f := range r.FieldResults {
		if f.Required && !f.ValidationPassed {
			out = append(out, f.FieldName)
		}
	}
	return out
}

// CandidateScore summarizes one ranked auto-classify candidate.
type CandidateScore struct {
	TemplateID      string  `json:"template_id"`
	MarkerScore     float64 `json:"marker_score"`
	MatchScore      float64 `json:"match_score"`
	RequiredMarkers int     `json:"required_markers"`
}

// ClassifyResult is the outcome of auto-classification.
type ClassifyResult struct {
	TemplateID string             `json:"template_id"`
	Result     TemplateTestResult `json:"result"`
	Candidates []CandidateScore   `json:"candidates"`
}

// TestRecord is a persisted template test run. TemplateHash pins the
// template content the result was produced from.
type TestRecord struct {
	ID           string             `json:"id"`
	TemplateID   string             `json:"template_id"`
	TemplateHash string             `json:"template_hash"`
	DocumentID   string             `json:"document_id,omitempty"`
	TestedAt     time.Time          `json:"tested_at"`
	Result       TemplateTestResult `json:"result"`
}
