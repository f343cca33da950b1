package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTask reads a task definition from a YAML or JSON file and
// validates it. The format is chosen by extension (.json vs
// .yaml/.yml); anything else is tried as YAML, which also accepts JSON.
func LoadTask(path string) (*TaskDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	var task TaskDefinition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
		}
	}

	if task.Name == "" {
		task.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := ValidateTask(&task); err != nil {
		return nil, err
	}
	return &task, nil
}

// WriteTask writes a task definition as YAML.
func WriteTask(path string, task *TaskDefinition) error {
	data, err := yaml.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	header := []byte("# glean task definition\n# extraction_text must be copied verbatim from the example text\n\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
