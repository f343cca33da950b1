// Package schema defines the extraction task data model and its
// validation rules.
//
// A TaskDefinition is immutable once handed to the pipeline: the
// annotator only reads it. Few-shot examples carry a hard contract —
// every extraction text must occur verbatim in its example passage —
// because the examples teach the model the grounding behavior the
// resolver later enforces on real output.
package schema

import (
	"fmt"
	"strings"
)

// Extraction is a single entity instance: a class label, the verbatim
// text it was extracted from, and optional key-value attributes.
// It is used both inside few-shot examples and as the candidate shape
// parsed from model output.
type Extraction struct {
	Class      string            `json:"extraction_class" yaml:"extraction_class"`
	Text       string            `json:"extraction_text" yaml:"extraction_text"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// ExampleDocument is one few-shot example: a text passage plus the
// extractions the model is expected to produce for it, in order.
type ExampleDocument struct {
	Text        string       `json:"text" yaml:"text"`
	Extractions []Extraction `json:"extractions" yaml:"extractions"`
}

// TaskDefinition describes one extraction task: what to extract
// (prompt + class vocabulary) and how (few-shot examples).
type TaskDefinition struct {
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Prompt   string            `json:"prompt" yaml:"prompt"`
	Classes  []string          `json:"classes" yaml:"classes"`
	Examples []ExampleDocument `json:"examples" yaml:"examples"`
}

// SchemaError reports a malformed few-shot example.
type SchemaError struct {
	Example int    // index of the offending example, -1 if standalone
	Detail  string
}

func (e *SchemaError) Error() string {
	if e.Example >= 0 {
		return fmt.Sprintf("example %d: %s", e.Example, e.Detail)
	}
	return e.Detail
}

// ConfigError reports a missing run precondition (prompt, classes,
// examples, credentials). It is surfaced before any backend call.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Detail)
}

// ValidateExample checks a single few-shot example. Every extraction
// must name a class and its text must be a literal substring of the
// example passage. The example index is only used for error reporting;
// pass -1 for a standalone example.
func ValidateExample(idx int, ex ExampleDocument) error {
	if strings.TrimSpace(ex.Text) == "" {
		return &SchemaError{Example: idx, Detail: "example text is empty"}
	}
	if len(ex.Extractions) == 0 {
		return &SchemaError{Example: idx, Detail: "example has no extractions"}
	}
	for i, ext := range ex.Extractions {
		if strings.TrimSpace(ext.Class) == "" {
			return &SchemaError{
				Example: idx,
				Detail:  fmt.Sprintf("extraction %d has an empty class", i),
			}
		}
		if ext.Text == "" {
			return &SchemaError{
				Example: idx,
				Detail:  fmt.Sprintf("extraction %d has empty text", i),
			}
		}
		if !strings.Contains(ex.Text, ext.Text) {
			return &SchemaError{
				Example: idx,
				Detail: fmt.Sprintf(
					"extraction text %q does not occur verbatim in the example text", ext.Text),
			}
		}
	}
	return nil
}

// ValidateTask checks the run preconditions for a task definition:
// non-empty prompt, non-empty class vocabulary, at least one valid
// example. Called before every run so a bad task never costs a
// backend call.
func ValidateTask(task *TaskDefinition) error {
	if task == nil {
		return &ConfigError{Field: "task", Detail: "task definition is nil"}
	}
	if strings.TrimSpace(task.Prompt) == "" {
		return &ConfigError{Field: "prompt", Detail: "extraction prompt is empty"}
	}
	if len(task.Classes) == 0 {
		return &ConfigError{Field: "classes", Detail: "class vocabulary is empty"}
	}
	for i, c := range task.Classes {
		if strings.TrimSpace(c) == "" {
			return &ConfigError{
				Field:  "classes",
				Detail: fmt.Sprintf("class %d is empty", i),
			}
		}
	}
	if len(task.Examples) == 0 {
		return &ConfigError{Field: "examples", Detail: "at least one few-shot example is required"}
	}
	for i, ex := range task.Examples {
		if err := ValidateExample(i, ex); err != nil {
			return err
		}
	}
	return nil
}
