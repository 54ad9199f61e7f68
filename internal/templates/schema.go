package templates

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const templateDataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["identification", "fields"],
  "properties": {
    "identification": {
      "type": "object",
      "additionalProperties": false,
      "required": ["markers"],
      "properties": {
        "markers": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["text"],
            "properties": {
              "text": {"type": "string", "minLength": 1},
              "required": {"type": "boolean"}
            }
          }
        }
      }
    },
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["field_name", "extraction"],
        "properties": {
          "field_name": {"type": "string", "minLength": 1},
          "display_name": {"type": "string"},
          "data_type": {
            "enum": ["string", "date", "currency", "integer", "float", "boolean", "address"]
          },
          "extraction": {
            "type": "object",
            "additionalProperties": false,
            "required": ["regex"],
            "properties": {
              "regex": {"type": "string", "minLength": 1},
              "alternative_regex": {"type": ["string", "null"]}
            }
          },
          "validation": {
            "type": ["object", "null"],
            "additionalProperties": false,
            "properties": {
              "required": {"type": "boolean"},
              "pattern": {"type": ["string", "null"]},
              "min_length": {"type": ["integer", "null"], "minimum": 0},
              "max_length": {"type": ["integer", "null"], "minimum": 0},
              "min_value": {"type": ["number", "null"]},
              "max_value": {"type": ["number", "null"]},
              "allowed_values": {"type": ["array", "null"], "items": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`

const templateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["template_data"],
  "properties": {
    "template_id": {"type": "string"},
    "name": {"type": "string"},
    "vendor": {"type": ["string", "null"]},
    "version": {"type": ["string", "null"]},
    "description": {"type": ["string", "null"]},
    "is_active": {"type": ["boolean", "null"]},
    "template_data": {"$ref": "template_data.json"}
  }
}`

var (
	schemaOnce sync.Once
	schemaErr  error
	fullSchema *jsonschema.Schema
	dataSchema *jsonschema.Schema
)

func schemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("template_data.json", strings.NewReader(templateDataSchema)); err != nil {
			schemaErr = eris.Wrap(err, "templates: add data schema")
			return
		}
		if err := compiler.AddResource("template.json", strings.NewReader(templateSchema)); err != nil {
			schemaErr = eris.Wrap(err, "templates: add template schema")
			return
		}
		if dataSchema, schemaErr = compiler.Compile("template_data.json"); schemaErr != nil {
			schemaErr = eris.Wrap(schemaErr, "templates: compile data schema")
			return
		}
		if fullSchema, schemaErr = compiler.Compile("template.json"); schemaErr != nil {
			schemaErr = eris.Wrap(schemaErr, "templates: compile template schema")
		}
	})
	return fullSchema, dataSchema, schemaErr
}
