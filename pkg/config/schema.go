package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/composerrc.schema.json
var rcSchemaJSON []byte

var (
	rcSchemaOnce sync.Once
	rcSchema     *gojsonschema.Schema
	rcSchemaErr  error
)

// Schema returns the embedded .composerrc JSON schema.
func Schema() []byte { return rcSchemaJSON }

func compiledSchema() (*gojsonschema.Schema, error) {
	rcSchemaOnce.Do(func() {
		rcSchema, rcSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(rcSchemaJSON))
	})
	return rcSchema, rcSchemaErr
}

// ValidateRC checks .composerrc content against the schema. It returns the
// sorted unknown top level keys, which are allowed but ignored.
func ValidateRC(data []byte) (unknown []string, err error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %v", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %v", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("schema violations:\n%s", strings.Join(problems, "\n"))
	}
	return unknownKeys(doc), nil
}
