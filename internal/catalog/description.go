package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaptinlin/jsonschema"
)

// descriptionSchema is the structural contract for dataset_description.json.
// BIDS requires the file at the dataset root with at least a Name and a
// BIDSVersion.
const descriptionSchema = `{
	"type": "object",
	"required": ["Name", "BIDSVersion"],
	"properties": {
		"Name": {"type": "string", "minLength": 1},
		"BIDSVersion": {"type": "string", "minLength": 1}
	}
}`

// validateDescription checks that root holds a structurally valid
// dataset_description.json. A missing or invalid description means the
// directory is not a usable BIDS dataset.
func validateDescription(root string) error {
	path := filepath.Join(root, "dataset_description.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read dataset description: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(descriptionSchema))
	if err != nil {
		return fmt.Errorf("catalog: compile description schema: %w", err)
	}

	result := schema.ValidateJSON(data)
	if !result.IsValid() {
		return fmt.Errorf("catalog: %s failed validation: %v", path, result.Errors)
	}
	return nil
}
