package ingest

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce     sync.Once
	schemaErr      error
	recordSchema   *jsonschema.Schema
	quadrantSchema *jsonschema.Schema
)

// compileSchemas compiles the embedded input schemas once per process.
func compileSchemas() error {
	schemaOnce.Do(func() {
		recordSchema, schemaErr = compileSchema("schemas/record.schema.json")
		if schemaErr != nil {
			return
		}
		quadrantSchema, schemaErr = compileSchema("schemas/quadrants.schema.json")
	})
	return schemaErr
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return schema, nil
}
