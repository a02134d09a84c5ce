package report

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed auditor_output.schema.json
var contractSchemaJSON string

const contractSchemaURL = "https://a11yharness.invalid/auditor_output.schema.json"

var contractSchema = mustCompileContract()

func mustCompileContract() *jsonschema.Schema {
	schema, err := compileContract()
	if err != nil {
		panic(err)
	}
	return schema
}

func compileContract() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(contractSchemaURL, strings.NewReader(contractSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(contractSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
