// Package validate coerces raw captures into typed values and checks field
// constraints.
package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-templates/internal/model"
)

// Coerce converts raw into the declared data type.
func Coerce(dt model.DataType, raw string) (*model.TypedValue, error) {
	s := strings.TrimSpace(raw)
	switch dt {
	case model.DataTypeString, model.DataTypeAddress, "":
		if dt == "" {
			dt = model.DataTypeString
		}
		return &model.TypedValue{Type: dt, Text: s}, nil

	case model.DataTypeInteger:
		n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
		if err != nil {
			return nil, eris.Errorf("validate: %q is not an integer", raw)
		}
		return &model.TypedValue{Type: dt, Integer: n}, nil

	case model.DataTypeFloat:
		f, err := parseFloat(s)
		if err != nil {
			return nil, eris.Errorf("validate: %q is not a number", raw)
		}
		return &model.TypedValue{Type: dt, Number: f}, nil

	case model.DataTypeCurrency:
		f, err := ParseCurrency(s)
		if err != nil {
			return nil, err
		}
		return &model.TypedValue{Type: dt, Number: f}, nil

	case model.DataTypeDate:
		t, err := NormalizeDate(s)
		if err != nil {
			return nil, err
		}
		return &model.TypedValue{Type: dt, Date: t}, nil

	case model.DataTypeBoolean:
		b, err := parseBool(s)
		if err != nil {
			return nil, err
		}
		return &model.TypedValue{Type: dt, Bool: b}, nil
	}
	return nil, eris.Errorf("validate: unknown data type %q", dt)
}

// ParseCurrency parses an amount such as "$1,234.56", "USD 10.00",
// "-€5" or "(12.50)". Parentheses denote a negative amount.
func ParseCurrency(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimSpace(s[1:])
	}

	s = trimCurrencyMarks(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	f, err := parseFloat(s)
	if err != nil {
		return 0, eris.Errorf("validate: %q is not a currency amount", raw)
	}
	if neg {
		f = -f
	}
	return f, nil
}

// trimCurrencyMarks drops a leading or trailing currency symbol or
// three-letter ISO code.
func trimCurrencyMarks(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})
	if len(s) > 3 && isISOCode(s[:3]) {
		s = strings.TrimLeftFunc(s[3:], func(r rune) bool {
			return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
		})
	}
	if len(s) > 3 && isISOCode(s[len(s)-3:]) {
		s = strings.TrimSpace(s[:len(s)-3])
	}
	return s
}

func isISOCode(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) == 3
}

// plainDecimal rejects the hex, exponent and Inf/NaN spellings that
// strconv.ParseFloat would otherwise accept.
var plainDecimal = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

func parseFloat(s string) (float64, error) {
	if !plainDecimal.MatchString(s) {
		return 0, eris.Errorf("validate: %q is not a decimal number", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("validate: %q is not finite", s)
	}
	return f, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	}
	return false, eris.Errorf("validate: %q is not a boolean", s)
}
