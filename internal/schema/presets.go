package schema

import (
	"fmt"
	"sort"
)

// Presets are ready-made task definitions covering common extraction
// jobs. They double as starting points for custom tasks
// (`glean task init --preset`).
var presets = map[string]*TaskDefinition{
	"characters": {
		Name:    "characters",
		Prompt:  "Extract characters, their emotional states, and relationships in order of appearance.",
		Classes: []string{"character"},
		Examples: []ExampleDocument{
			{
				Text: "ROMEO. But soft! What light through yonder window breaks? It is the east, and Juliet is the sun.",
				Extractions: []Extraction{
					{Class: "character", Text: "ROMEO", Attributes: map[string]string{"emotional_state": "wonder", "role": "protagonist"}},
					{Class: "character", Text: "Juliet", Attributes: map[string]string{"emotional_state": "referenced", "role": "love interest"}},
				},
			},
		},
	},
	"medical": {
		Name:    "medical",
		Prompt:  "Extract medications, dosages, routes of administration, and any adverse reactions mentioned.",
		Classes: []string{"medication", "adverse_reaction"},
		Examples: []ExampleDocument{
			{
				Text: "Patient was prescribed Metformin 500mg orally twice daily. Reported mild nausea after first dose.",
				Extractions: []Extraction{
					{Class: "medication", Text: "Metformin 500mg", Attributes: map[string]string{"route": "oral", "frequency": "twice daily"}},
					{Class: "adverse_reaction", Text: "mild nausea", Attributes: map[string]string{"severity": "mild", "timing": "after first dose"}},
				},
			},
		},
	},
	"legal": {
		Name:    "legal",
		Prompt:  "Extract parties, dates, obligations, and monetary amounts from legal text.",
		Classes: []string{"party", "date", "obligation", "amount"},
		Examples: []ExampleDocument{
			{
				Text: "ACME Corp agrees to pay Widget Inc $50,000 by December 31, 2025 for consulting services.",
				Extractions: []Extraction{
					{Class: "party", Text: "ACME Corp", Attributes: map[string]string{"role": "payer"}},
					{Class: "party", Text: "Widget Inc", Attributes: map[string]string{"role": "payee"}},
					{Class: "amount", Text: "$50,000", Attributes: map[string]string{"currency": "USD"}},
					{Class: "date", Text: "December 31, 2025", Attributes: map[string]string{"type": "deadline"}},
				},
			},
		},
	},
	"feedback": {
		Name:    "feedback",
		Prompt:  "Extract sentiment, product features mentioned, and issues reported from customer reviews.",
		Classes: []string{"feature", "issue"},
		Examples: []ExampleDocument{
			{
				Text: "Love the battery life on this phone! But the camera quality in low light is terrible and the app crashes frequently.",
				Extractions: []Extraction{
					{Class: "feature", Text: "battery life", Attributes: map[string]string{"sentiment": "positive"}},
					{Class: "issue", Text: "camera quality in low light is terrible", Attributes: map[string]string{"component": "camera", "severity": "major"}},
					{Class: "issue", Text: "app crashes frequently", Attributes: map[string]string{"component": "software", "severity": "major"}},
				},
			},
		},
	},
	"knowledge-graph": {
		Name:    "knowledge-graph",
		Prompt:  "Extract entities and their relationships to populate a knowledge graph. Include entity types and relationship labels.",
		Classes: []string{"entity", "relationship"},
		Examples: []ExampleDocument{
			{
				Text: "Albert Einstein developed the theory of relativity while working at the Swiss Patent Office in Bern.",
				Extractions: []Extraction{
					{Class: "entity", Text: "Albert Einstein", Attributes: map[string]string{"type": "person", "role": "scientist"}},
					{Class: "entity", Text: "theory of relativity", Attributes: map[string]string{"type": "scientific_theory"}},
					{Class: "entity", Text: "Swiss Patent Office", Attributes: map[string]string{"type": "organization", "location": "Bern"}},
					{Class: "relationship", Text: "developed", Attributes: map[string]string{"subject": "Albert Einstein", "object": "theory of relativity", "type": "created"}},
				},
			},
		},
	},
}

// Preset returns a copy of a named preset task definition.
func Preset(name string) (*TaskDefinition, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	cp := *p
	cp.Classes = append([]string(nil), p.Classes...)
	cp.Examples = append([]ExampleDocument(nil), p.Examples...)
	return &cp, nil
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
