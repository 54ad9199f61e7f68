// Package templates reads and writes template definitions in the
// template_data import/export format.
package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/patterns"
)

// Decode parses a JSON template definition. b holds either a full template
// object or a bare template_data object. Shape violations are returned as
// *patterns.TemplateInvalidError.
func Decode(b []byte) (*model.Template, error) {
	full, data, err := schemas()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &patterns.TemplateInvalidError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &patterns.TemplateInvalidError{Reason: "definition must be a JSON object"}
	}
	id, _ := obj["template_id"].(string)

	var tpl model.Template
	if _, wrapped := obj["template_data"]; wrapped {
		if err := full.Validate(raw); err != nil {
			return nil, schemaError(id, err)
		}
		if err := strictUnmarshal(b, &tpl); err != nil {
			return nil, &patterns.TemplateInvalidError{TemplateID: id, Reason: err.Error()}
		}
	} else {
		if err := data.Validate(raw); err != nil {
			return nil, schemaError(id, err)
		}
		if err := strictUnmarshal(b, &tpl.Data); err != nil {
			return nil, &patterns.TemplateInvalidError{TemplateID: id, Reason: err.Error()}
		}
	}

	for i := range tpl.Data.Fields {
		if tpl.Data.Fields[i].DataType == "" {
			tpl.Data.Fields[i].DataType = model.DataTypeString
		}
	}
	return &tpl, nil
}

// DecodeYAML parses a YAML template definition with the same shape rules
// as Decode.
func DecodeYAML(b []byte) (*model.Template, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, &patterns.TemplateInvalidError{Reason: fmt.Sprintf("malformed YAML: %v", err)}
	}
	j, err := json.Marshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "templates: convert yaml to json")
	}
	return Decode(j)
}

// DecodeFile reads a template definition from disk, choosing the YAML
// decoder for .yaml and .yml files.
func DecodeFile(path string) (*model.Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "templates: read %s", path)
	}
	if IsYAML(path) {
		return DecodeYAML(b)
	}
	return Decode(b)
}

// IsYAML reports whether path has a YAML extension.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Export renders the template_data block as indented JSON. Output is
// canonical: a null alternative_regex or validation is omitted, and every
// marker carries an explicit required flag. Decoding the output yields the
// same template.
func Export(t *model.Template) ([]byte, error) {
	b, err := json.MarshalIndent(t.Data, "", "  ")
	if err != nil {
		return nil, eris.Wrapf(err, "templates: export %q", t.ID)
	}
	return b, nil
}

// ExportTemplate renders the full template, metadata included, as
// indented JSON.
func ExportTemplate(t *model.Template) ([]byte, error) {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, eris.Wrapf(err, "templates: export %q", t.ID)
	}
	return b, nil
}

func strictUnmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// schemaError flattens a schema validation failure to its leaf causes.
func schemaError(id string, err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &patterns.TemplateInvalidError{TemplateID: id, Reason: err.Error()}
	}

	var leaves []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(leaves)

	return &patterns.TemplateInvalidError{
		TemplateID: id,
		Reason:     "schema: " + strings.Join(leaves, "; "),
	}
}
