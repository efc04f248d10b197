package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/hooklabs/prehook/internal/errors"
)

// configSchema is the JSON schema the validate-config action checks files
// against before the structural checks in validate() run.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["repos"],
  "properties": {
    "repos": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["repo", "hooks"],
        "properties": {
          "repo": {"type": "string", "minLength": 1},
          "rev": {"type": "string"},
          "hooks": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["id"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "name": {"type": "string"},
                "entry": {"type": "string"},
                "language": {"type": "string"},
                "args": {"type": "array", "items": {"type": "string"}},
                "files": {"type": "string"},
                "exclude": {"type": "string"},
                "types": {"type": "array", "items": {"type": "string"}},
                "types_or": {"type": "array", "items": {"type": "string"}},
                "exclude_types": {"type": "array", "items": {"type": "string"}},
                "always_run": {"type": "boolean"},
                "fail_fast": {"type": "boolean"},
                "verbose": {"type": "boolean"},
                "pass_filenames": {"type": "boolean"},
                "log_file": {"type": "string"},
                "additional_dependencies": {"type": "array", "items": {"type": "string"}},
                "stages": {"type": "array", "items": {"type": "string"}}
              }
            }
          }
        }
      }
    },
    "files": {"type": "string"},
    "exclude": {"type": "string"},
    "fail_fast": {"type": "boolean"},
    "default_stages": {"type": "array", "items": {"type": "string"}}
  }
}`

// ValidateFile checks one configuration file against the schema and the
// structural rules, reporting the failing field and its source location.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - path given on the command line
	if err != nil {
		return errors.Newf(errors.ErrConfigNotFound, "Failed to read `%s`", path).WithCause(err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return parseError(path, err)
	}

	jsonData, err := json.Marshal(normalizeKeys(raw))
	if err != nil {
		return parseError(path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return parseError(path, err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return parseError(path, fmt.Errorf("%s", strings.Join(details, "; ")))
	}

	// Schema passed; run the stricter structural checks for location info.
	_, err = Load(path)
	return err
}

// normalizeKeys converts yaml's map[interface{}]interface{} trees into
// map[string]interface{} so they can be marshalled to JSON.
func normalizeKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, inner := range val {
			m[fmt.Sprintf("%v", k)] = normalizeKeys(inner)
		}
		return m
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = normalizeKeys(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = normalizeKeys(inner)
		}
		return val
	default:
		return val
	}
}
