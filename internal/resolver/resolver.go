// Package resolver turns raw model output into grounded extractions.
//
// Each raw output moves through a small state machine:
// received -> parsed -> grounded or rejected. Parsing strips the
// output envelope and decodes candidates; grounding proves each
// candidate occurs verbatim in its chunk and computes absolute
// character offsets. Candidates that cannot be grounded are dropped
// and counted, never kept with bogus offsets.
package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gleanlabs/glean/internal/chunk"
	"github.com/gleanlabs/glean/internal/schema"
)

// Grounded is an extraction aligned to exact character offsets in the
// source document. Invariant: document[CharStart:CharEnd] == Text.
type Grounded struct {
	Class      string            `json:"extraction_class"`
	Text       string            `json:"extraction_text"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CharStart  int               `json:"char_start"`
	CharEnd    int               `json:"char_end"`
	PassIndex  int               `json:"-"`
}

// ParseError reports malformed model output for one chunk. Non-fatal:
// the chunk contributes zero extractions and the run records the
// failure.
type ParseError struct {
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Detail, e.Err)
	}
	return "parse: " + e.Detail
}

func (e *ParseError) Unwrap() error { return e.Err }

// Resolver parses and grounds model output for one run. Immutable
// after construction; safe for concurrent use across workers.
// Fence stripping is attempted on every payload regardless of how the
// output was requested, since models fence inconsistently.
type Resolver struct {
	schema *jsonschema.Schema
}

// Options configures a Resolver.
type Options struct {
	// Schema, when non-empty, validates parsed payloads against the
	// canonical extraction schema wrapper.
	Schema json.RawMessage
}

// New creates a Resolver, compiling the validation schema if one is
// supplied.
func New(opts Options) (*Resolver, error) {
	r := &Resolver{}
	if len(opts.Schema) > 0 {
		core, err := extractValidationSchema(opts.Schema)
		if err != nil {
			return nil, err
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extraction.json", bytes.NewReader(core)); err != nil {
			return nil, fmt.Errorf("failed to load extraction schema: %w", err)
		}
		compiled, err := compiler.Compile("extraction.json")
		if err != nil {
			return nil, fmt.Errorf("failed to compile extraction schema: %w", err)
		}
		r.schema = compiled
	}
	return r, nil
}

// envelope is the wrapped payload shape the prompt requests.
type envelope struct {
	Extractions []schema.Extraction `json:"extractions"`
}

// Parse decodes raw model output into candidate extractions. It
// accepts the canonical {"extractions":[...]} envelope and a bare
// array, with lightweight recovery for code fences and surrounding
// prose.
func (r *Resolver) Parse(raw string) ([]schema.Extraction, error) {
	payload, err := extractPayload(raw)
	if err != nil {
		return nil, err
	}

	if r.schema != nil {
		var doc any
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, &ParseError{Detail: "payload is not valid JSON", Err: err}
		}
		// A bare array cannot match the envelope schema; wrap it
		// before validating.
		if _, ok := doc.([]any); ok {
			doc = map[string]any{"extractions": doc}
		}
		if err := r.schema.Validate(doc); err != nil {
			return nil, &ParseError{Detail: "payload does not match extraction schema", Err: err}
		}
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var candidates []schema.Extraction
		if err := json.Unmarshal(trimmed, &candidates); err != nil {
			return nil, &ParseError{Detail: "failed to decode extraction array", Err: err}
		}
		return candidates, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &ParseError{Detail: "failed to decode extraction envelope", Err: err}
	}
	return env.Extractions, nil
}

// Ground aligns candidates to the chunk they were extracted from,
// scanning left to right and consuming each character position at
// most once so two identical candidates ground at distinct
// occurrences. Ungroundable candidates are dropped; the count of
// drops is returned for run diagnostics.
func (r *Resolver) Ground(c chunk.Chunk, candidates []schema.Extraction) (grounded []Grounded, misses int) {
	consumed := make([]bool, len(c.Text))

	for _, cand := range candidates {
		if cand.Text == "" || strings.TrimSpace(cand.Class) == "" {
			misses++
			continue
		}
		local, ok := findUnconsumed(c.Text, cand.Text, consumed)
		if !ok {
			misses++
			continue
		}
		for i := local; i < local+len(cand.Text); i++ {
			consumed[i] = true
		}
		grounded = append(grounded, Grounded{
			Class:      cand.Class,
			Text:       cand.Text,
			Attributes: cand.Attributes,
			CharStart:  c.StartOffset + local,
			CharEnd:    c.StartOffset + local + len(cand.Text),
		})
	}
	return grounded, misses
}

// findUnconsumed returns the byte offset of the first occurrence of
// needle in text whose positions are all unconsumed.
func findUnconsumed(text, needle string, consumed []bool) (int, bool) {
	from := 0
	for {
		idx := strings.Index(text[from:], needle)
		if idx < 0 {
			return 0, false
		}
		pos := from + idx
		if !anyConsumed(consumed, pos, pos+len(needle)) {
			return pos, true
		}
		from = pos + 1
	}
}

func anyConsumed(consumed []bool, lo, hi int) bool {
	for i := lo; i < hi; i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}

// extractPayload strips the output envelope: surrounding prose and
// markdown code fences. Candidates are tried in order and the first
// well-formed JSON document wins.
func extractPayload(raw string) (json.RawMessage, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return nil, &ParseError{Detail: "empty model output"}
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, &ParseError{Detail: "no JSON payload found in model output"}
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return ""
	}
	trimmed = trimmed[start:]

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop the opening fence line (``` or ```json).
	lines = lines[1:]
	// Drop everything from the closing fence on.
	for i, line := range lines {
		if strings.TrimSpace(line) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start = objectStart
			closeChar = "}"
		} else {
			start = arrayStart
			closeChar = "]"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

func extractValidationSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root any
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid extraction schema JSON: %w", err)
	}

	if rootMap, ok := root.(map[string]any); ok {
		// Canonical wrapper: {"name","strict","schema":{...}}
		if inner, ok := rootMap["schema"]; ok {
			b, err := json.Marshal(inner)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize inner schema: %w", err)
			}
			return b, nil
		}
	}

	// Assume raw schema document.
	return schemaRaw, nil
}
