// Package extract pulls raw field values out of document text.
package extract

import (
	"regexp"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
)

// Result is the raw outcome of running one field's extraction rules.
type Result struct {
	Raw    string
	Found  bool
	Method string
}

// Field applies the primary regex and then the alternative regex to text.
// Each pattern contributes only its first match and capture group 1. A
// match whose group 1 is empty counts as no match.
func Field(text string, f *patterns.CompiledField) Result {
	if raw, ok := firstGroup(f.Primary, text); ok {
		return Result{Raw: raw, Found: true, Method: model.MatchMethodRegex}
	}
	if f.Alternative != nil {
		if raw, ok := firstGroup(f.Alternative, text); ok {
			return Result{Raw: raw, Found: true, Method: model.MatchMethodAlternative}
		}
	}
	return Result{}
}

func firstGroup(re *regexp.Regexp, text string) (string, bool) {
	if re == nil {
		return "", false
	}
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil || len(loc) < 4 || loc[2] < 0 || loc[3] <= loc[2] {
		return "", false
	}
	return text[loc[2]:loc[3]], true
}
