// Package patterns compiles template regexes and markers once at load time
// and caches the compiled form for reuse across documents.
package patterns

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/invoice-templates/internal/model"
)

// TemplateInvalidError reports a template that cannot be compiled. It is
// raised only at load time so one malformed template never aborts
// extraction against the others.
type TemplateInvalidError struct {
	TemplateID string
	FieldName  string
	Reason     string
}

func (e *TemplateInvalidError) Error() string {
	if e.FieldName != "" {
		return fmt.Sprintf("patterns: template %q field %q: %s", e.TemplateID, e.FieldName, e.Reason)
	}
	return fmt.Sprintf("patterns: template %q: %s", e.TemplateID, e.Reason)
}

// CompiledMarker is a marker with its case-folded search text.
type CompiledMarker struct {
	Text     string
	Required bool
	folded   string
}

// Folded returns the case-folded marker text used for substring search.
func (m CompiledMarker) Folded() string {
	return m.folded
}

// CompiledField holds a field definition with its regexes compiled.
// Alternative and Pattern are nil when the template omits them.
type CompiledField struct {
	Field       model.Field
	Primary     *regexp.Regexp
	Alternative *regexp.Regexp
	Pattern     *regexp.Regexp
}

// CompiledTemplate is the immutable, ready-to-run form of a template.
type CompiledTemplate struct {
	Template model.Template
	Hash     string
	Markers  []CompiledMarker
	Fields   []CompiledField

	requiredMarkers int
}

// ID returns the template id the compiled form is keyed by.
func (c *CompiledTemplate) ID() string {
	return c.Template.ID
}

// RequiredMarkers returns the number of required markers.
func (c *CompiledTemplate) RequiredMarkers() int {
	return c.requiredMarkers
}

// FoldText normalizes s for case-insensitive marker comparison. It applies
// NFKC normalization and Unicode case folding.
func FoldText(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Hash returns the content hash that keys cache invalidation. Any change to
// the template, including a version bump, changes the hash.
func Hash(t model.Template) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", eris.Wrapf(err, "patterns: hash template %q", t.ID)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum), nil
}

// Compile validates and compiles every regex and marker of t.
func Compile(t model.Template) (*CompiledTemplate, error) {
	hash, err := Hash(t)
	if err != nil {
		return nil, err
	}
	return compile(t, hash)
}

func compile(t model.Template, hash string) (*CompiledTemplate, error) {
	invalid := func(field, format string, args ...any) error {
		return &TemplateInvalidError{TemplateID: t.ID, FieldName: field, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(t.ID) == "" {
		return nil, invalid("", "missing template_id")
	}

	ct := &CompiledTemplate{
		Template: t,
		Hash:     hash,
		Markers:  make([]CompiledMarker, 0, len(t.Data.Identification.Markers)),
		Fields:   make([]CompiledField, 0, len(t.Data.Fields)),
	}

	for i, m := range t.Data.Identification.Markers {
		if strings.TrimSpace(m.Text) == "" {
			return nil, invalid("", "marker %d has empty text", i)
		}
		ct.Markers = append(ct.Markers, CompiledMarker{
			Text:     m.Text,
			Required: m.Required,
			folded:   FoldText(m.Text),
		})
		if m.Required {
			ct.requiredMarkers++
		}
	}

	seen := make(map[string]bool, len(t.Data.Fields))
	for i, f := range t.Data.Fields {
		if strings.TrimSpace(f.FieldName) == "" {
			return nil, invalid("", "field %d has empty field_name", i)
		}
		if seen[f.FieldName] {
			return nil, invalid(f.FieldName, "duplicate field_name")
		}
		seen[f.FieldName] = true

		if f.DataType == "" {
			f.DataType = model.DataTypeString
		}
		if _, err := model.ParseDataType(string(f.DataType)); err != nil {
			return nil, invalid(f.FieldName, "%v", err)
		}

		cf := CompiledField{Field: f}

		var err error
		cf.Primary, err = compileCapture(f.Extraction.Regex)
		if err != nil {
			return nil, invalid(f.FieldName, "regex: %v", err)
		}
		if f.Extraction.AlternativeRegex != nil {
			cf.Alternative, err = compileCapture(*f.Extraction.AlternativeRegex)
			if err != nil {
				return nil, invalid(f.FieldName, "alternative_regex: %v", err)
			}
		}

		if v := f.Validation; v != nil {
			if v.Pattern != nil {
				cf.Pattern, err = regexp.Compile(*v.Pattern)
				if err != nil {
					return nil, invalid(f.FieldName, "validation pattern: %v", err)
				}
			}
			if v.MinLength != nil && v.MaxLength != nil && *v.MinLength > *v.MaxLength {
				return nil, invalid(f.FieldName, "min_length %d exceeds max_length %d", *v.MinLength, *v.MaxLength)
			}
			if v.MinValue != nil && v.MaxValue != nil && *v.MinValue > *v.MaxValue {
				return nil, invalid(f.FieldName, "min_value %g exceeds max_value %g", *v.MinValue, *v.MaxValue)
			}
		}

		ct.Fields = append(ct.Fields, cf)
	}

	return ct, nil
}

var errNoCaptureGroup = eris.New("pattern must declare at least one capture group")

// compileCapture compiles an extraction regex and requires a capture group.
func compileCapture(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, eris.New("pattern is empty")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() == 0 {
		return nil, errNoCaptureGroup
	}
	return re, nil
}
