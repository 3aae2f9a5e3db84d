package marketplace

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ManifestValidator checks a capability's declared input/output against a
// JSON Schema document before registration, catching malformed manifests
// from externally-sourced catalogs before they reach the language layer's
// structural TypeExpr validator.
type ManifestValidator struct {
	schema *jsonschema.Schema
}

// NewManifestValidator compiles the given JSON Schema document (as raw
// bytes) for reuse across many ValidateManifest calls.
func NewManifestValidator(schemaJSON []byte) (*ManifestValidator, error) {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("marketplace: parse manifest schema: %w", err)
	}
	const resourceName = "capability-manifest.json"
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("marketplace: add manifest schema resource: %w", err)
	}
	sch, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("marketplace: compile manifest schema: %w", err)
	}
	return &ManifestValidator{schema: sch}, nil
}

// ValidateManifest checks a decoded manifest document (map[string]interface{}
// as produced by encoding/json or yaml.v3 with DecodeYamlToJSONCompatible
// semantics) against the compiled schema.
func (v *ManifestValidator) ValidateManifest(manifest interface{}) error {
	if err := v.schema.Validate(manifest); err != nil {
		return fmt.Errorf("marketplace: manifest failed schema validation: %w", err)
	}
	return nil
}

// DefaultManifestSchema is the built-in schema for YAML catalog entries,
// mirroring the catalogEntry shape.
const DefaultManifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "provider"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "provider": {"type": "string", "enum": ["http", "remote-instance"]},
    "endpoint": {"type": "string"},
    "method": {"type": "string"},
    "timeout_ms": {"type": "integer", "minimum": 0},
    "rate_limit_per_second": {"type": "number", "minimum": 0}
  }
}`
