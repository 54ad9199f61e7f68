package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
)

// Field coerces a raw capture and checks it against the field's validation
// block. found reports whether extraction captured anything; when false,
// raw is ignored. Problems are returned in a stable order and an empty
// result means validation passed.
func Field(cf *patterns.CompiledField, raw string, found bool) (*model.TypedValue, []string) {
	f := cf.Field
	if !found {
		if f.IsRequired() {
			return nil, []string{"required field not found"}
		}
		return nil, nil
	}

	var problems []string
	value, err := Coerce(f.DataType, raw)
	if err != nil {
		problems = append(problems, fmt.Sprintf("coerce %s: %s", f.DataType, strings.TrimPrefix(err.Error(), "validate: ")))
	}
	return value, append(problems, Check(cf, raw, value)...)
}

// Check applies the constraints of the field's validation block to a
// captured value. value may be nil when coercion failed; numeric bounds are
// then skipped because coercion already reported the failure.
func Check(cf *patterns.CompiledField, raw string, value *model.TypedValue) []string {
	v := cf.Field.Validation
	if v == nil {
		return nil
	}

	var problems []string
	s := strings.TrimSpace(raw)

	if v.Required && s == "" {
		problems = append(problems, "required field is empty")
	}
	if cf.Pattern != nil && !cf.Pattern.MatchString(raw) {
		problems = append(problems, fmt.Sprintf("does not match pattern %q", cf.Pattern.String()))
	}

	n := utf8.RuneCountInString(s)
	if v.MinLength != nil && n < *v.MinLength {
		problems = append(problems, fmt.Sprintf("length %d below min_length %d", n, *v.MinLength))
	}
	if v.MaxLength != nil && n > *v.MaxLength {
		problems = append(problems, fmt.Sprintf("length %d above max_length %d", n, *v.MaxLength))
	}

	if cf.Field.DataType.IsNumeric() && value != nil {
		if num, ok := value.Numeric(); ok {
			if v.MinValue != nil && num < *v.MinValue {
				problems = append(problems, fmt.Sprintf("value %g below min_value %g", num, *v.MinValue))
			}
			if v.MaxValue != nil && num > *v.MaxValue {
				problems = append(problems, fmt.Sprintf("value %g above max_value %g", num, *v.MaxValue))
			}
		}
	}

	if len(v.AllowedValues) > 0 && !allowed(v.AllowedValues, s) {
		problems = append(problems, fmt.Sprintf("value %q not in allowed_values", s))
	}
	return problems
}

func allowed(values []string, s string) bool {
	for _, a := range values {
		if strings.EqualFold(strings.TrimSpace(a), s) {
			return true
		}
	}
	return false
}
