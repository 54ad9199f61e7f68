package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataType is the declared type of a template field.
type DataType string

// Supported field data types.
const (
	DataTypeString   DataType = "string"
	DataTypeDate     DataType = "date"
	DataTypeCurrency DataType = "currency"
	DataTypeInteger  DataType = "integer"
	DataTypeFloat    DataType = "float"
	DataTypeBoolean  DataType = "boolean"
	DataTypeAddress  DataType = "address"
)

// DataTypes lists every accepted data type in declaration order.
var DataTypes = []DataType{
	DataTypeString,
	DataTypeDate,
	DataTypeCurrency,
	DataTypeInteger,
	DataTypeFloat,
	DataTypeBoolean,
	DataTypeAddress,
}

// ParseDataType validates s against the closed set of data types.
// An empty string defaults to DataTypeString.
func ParseDataType(s string) (DataType, error) {
	if s == "" {
		return DataTypeString, nil
	}
	for _, dt := range DataTypes {
		if string(dt) == s {
			return dt, nil
		}
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// IsNumeric reports whether min_value/max_value constraints apply.
func (d DataType) IsNumeric() bool {
	switch d {
	case DataTypeInteger, DataTypeFloat, DataTypeCurrency:
		return true
	}
	return false
}

// UnmarshalJSON rejects data types outside the closed set.
func (d *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	dt, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*d = dt
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML template files.
func (d *DataType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dt, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*d = dt
	return nil
}

// Template is a named extraction ruleset for one vendor or document layout.
type Template struct {
	ID          string       `json:"template_id,omitempty" yaml:"template_id,omitempty"`
	Name        string       `json:"name" yaml:"name"`
	Vendor      string       `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Version     string       `json:"version,omitempty" yaml:"version,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	Data        TemplateData `json:"template_data" yaml:"template_data"`
}

// Active reports whether the template takes part in auto-classification.
// Templates without an explicit flag are active.
func (t *Template) Active() bool {
	return t.IsActive == nil || *t.IsActive
}

// ExportFileName returns the download name used for template exports.
func (t *Template) ExportFileName() string {
	version := t.Version
	if version == "" {
		version = "1.0"
	}
	return fmt.Sprintf("%s_v%s.json", strings.ReplaceAll(t.Name, " ", "_"), version)
}

// TemplateData is the import/export shape of a template definition.
type TemplateData struct {
	Identification Identification `json:"identification" yaml:"identification"`
	Fields         []Field        `json:"fields" yaml:"fields"`
}

// Identification holds the markers used to recognize a document.
type Identification struct {
	Markers []Marker `json:"markers" yaml:"markers"`
}

// Marker is a case-insensitive substring expected in the document text.
type Marker struct {
	Text     string `json:"text" yaml:"text"`
	Required bool   `json:"required" yaml:"required"`
}

// Field is one named, typed value to extract from a document.
type Field struct {
	FieldName   string      `json:"field_name" yaml:"field_name"`
	DisplayName string      `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	DataType    DataType    `json:"data_type" yaml:"data_type"`
	Extraction  Extraction  `json:"extraction" yaml:"extraction"`
	Validation  *Validation `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// Label returns the display name, falling back to the field name.
func (f *Field) Label() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.FieldName
}

// IsRequired reports whether the field's validation block marks it required.
func (f *Field) IsRequired() bool {
	return f.Validation != nil && f.Validation.Required
}

// Extraction holds the primary and optional fallback patterns for a field.
type Extraction struct {
	Regex            string  `json:"regex" yaml:"regex"`
	AlternativeRegex *string `json:"alternative_regex,omitempty" yaml:"alternative_regex,omitempty"`
}

// Validation holds optional constraints checked after extraction.
type Validation struct {
	Required      bool     `json:"required" yaml:"required"`
	Pattern       *string  `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinLength     *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength     *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	MinValue      *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty" yaml:"allowed_values,omitempty"`
}

// RequiredMarkers counts the markers flagged as required.
func (d *TemplateData) RequiredMarkers() int {
	n := 0
	for _, m := range d.Identification.Markers {
		if m.Required {
			n++
		}
	}
	return n
}
