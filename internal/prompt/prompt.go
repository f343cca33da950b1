// Package prompt compiles a task definition into the model-facing
// instruction payload. One compiled prompt is built per run and shared
// read-only across every chunk and pass.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gleanlabs/glean/internal/schema"
)

// SystemPrompt is the fixed preamble for extraction requests. The
// task-specific instruction, class vocabulary, and few-shot examples
// are appended by Compile.
const SystemPrompt = `You are a precision entity extraction engine. You will be given a passage of text and must extract entity mentions as structured JSON.

**RULES (all mandatory)**:

1. **Verbatim text** - extraction_text must be an EXACT character-for-character copy of a substring of the passage. Never paraphrase, normalize whitespace, fix spelling, or merge separate mentions.
2. **Order of appearance** - emit extractions in the order they occur in the passage.
3. **Allowed classes only** - extraction_class must be one of the classes listed below. Do not invent classes.
4. **Attributes** - attach attributes as flat string key-value pairs. Omit the attributes object when there is nothing to add.
5. **No commentary** - output only the JSON payload in the requested envelope. Any prose outside it is an error.`

// envelope is the JSON shape the model is asked to produce.
const envelope = `{"extractions": [{"extraction_class": "...", "extraction_text": "...", "attributes": {"key": "value"}}]}`

// Compiled is the immutable instruction payload for one run.
type Compiled struct {
	System string
	// FenceOutput asks the model to wrap its payload in a ```json
	// code fence; when false the payload is requested raw. Threaded
	// through from configuration, not pipeline logic.
	FenceOutput bool
	// UseSchemaConstraints requests backend-native structured output
	// where the provider supports it.
	UseSchemaConstraints bool
}

// Options selects the output envelope behavior.
type Options struct {
	FenceOutput          bool
	UseSchemaConstraints bool
}

// Compile builds the system prompt for a validated task definition.
// The caller is expected to have run schema.ValidateTask first; Compile
// re-checks example serialization only insofar as JSON marshaling can
// fail.
func Compile(task *schema.TaskDefinition, opts Options) (*Compiled, error) {
	var b strings.Builder
	b.WriteString(SystemPrompt)

	b.WriteString("\n\n**TASK**: ")
	b.WriteString(strings.TrimSpace(task.Prompt))

	b.WriteString("\n\n**ALLOWED CLASSES**: ")
	b.WriteString(strings.Join(task.Classes, ", "))

	b.WriteString("\n\n**OUTPUT ENVELOPE**:\n")
	b.WriteString(envelope)
	if opts.FenceOutput {
		b.WriteString("\n\nWrap the JSON payload in a ```json code fence.")
	} else {
		b.WriteString("\n\nOutput the raw JSON payload with no code fence.")
	}

	b.WriteString("\n\n**EXAMPLES**:\n")
	for i, ex := range task.Examples {
		answer, err := marshalExampleAnswer(ex)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize example %d: %w", i, err)
		}
		fmt.Fprintf(&b, "\nQ: %s\nA: %s\n", ex.Text, answer)
	}

	return &Compiled{
		System:               b.String(),
		FenceOutput:          opts.FenceOutput,
		UseSchemaConstraints: opts.UseSchemaConstraints,
	}, nil
}

// BuildUserPrompt builds the per-chunk user message.
func (c *Compiled) BuildUserPrompt(chunkText string) string {
	return fmt.Sprintf("Q: %s\nA: ", chunkText)
}

// marshalExampleAnswer serializes one example's expected extractions in
// the exact envelope the model must echo. encoding/json sorts map keys,
// so the serialization is deterministic across runs.
func marshalExampleAnswer(ex schema.ExampleDocument) (string, error) {
	payload := struct {
		Extractions []schema.Extraction `json:"extractions"`
	}{Extractions: ex.Extractions}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
