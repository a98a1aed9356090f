package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema for tool arguments.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles the parameter schema of the named tool. A nil or
// empty schema yields a Schema that accepts any JSON object. The schema is
// registered under an in-memory URL, so validation errors never mention
// host paths.
func CompileSchema(name string, params map[string]any) (*Schema, error) {
	if len(params) == 0 {
		return &Schema{}, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	loc := "mem://tools/" + url.PathEscape(name) + ".json"

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(loc, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := compiler.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Schema{compiled: compiled}, nil
}

// Validate checks decoded JSON arguments against the schema.
func (s *Schema) Validate(args map[string]any) error {
	if s.compiled == nil {
		return nil
	}

	// the validator expects plain decoded JSON values
	var v any = map[string]any(args)
	if args == nil {
		v = map[string]any{}
	}

	return s.compiled.Validate(v)
}

// ParseArguments decodes the raw JSON argument object of a tool call. An
// empty string is treated as an empty object.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return args, nil
	}

	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	if args == nil { // literal null
		args = map[string]any{}
	}

	return args, nil
}
