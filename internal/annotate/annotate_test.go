package annotate

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/gleanlabs/glean/internal/providers"
	"github.com/gleanlabs/glean/internal/resolver"
	"github.com/gleanlabs/glean/internal/schema"
)

func testTask() *schema.TaskDefinition {
	return &schema.TaskDefinition{
		Name:    "test",
		Prompt:  "Extract people and organizations.",
		Classes: []string{"person", "organization", "money"},
		Examples: []schema.ExampleDocument{
			{
				Text: "Jane works at Initech.",
				Extractions: []schema.Extraction{
					{Class: "person", Text: "Jane"},
					{Class: "organization", Text: "Initech"},
				},
			},
		},
	}
}

func mustAnnotator(t *testing.T, p providers.Provider, opts Options) *Annotator {
	t.Helper()
	a, err := New(p, testTask(), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNewRejectsBadInputs(t *testing.T) {
	if _, err := New(nil, testTask(), Options{}); err == nil {
		t.Error("expected error for nil provider")
	}

	bad := testTask()
	bad.Examples = nil
	if _, err := New(providers.NewMockProvider(), bad, Options{}); err == nil {
		t.Error("expected error for task without examples")
	}
}

func TestAnnotateEndToEnd(t *testing.T) {
	doc := "ACME Corp agrees to pay the sum of $50,000."
	mock := providers.NewMockProvider()
	mock.Respond("ACME", `{"extractions": [
		{"extraction_class": "organization", "extraction_text": "ACME Corp", "attributes": {"role": "payer"}},
		{"extraction_class": "money", "extraction_text": "$50,000"}
	]}`)

	a := mustAnnotator(t, mock, Options{})
	res, err := a.Annotate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	if res.RunID == "" {
		t.Error("missing run ID")
	}
	if len(res.Extractions) != 2 {
		t.Fatalf("extractions = %d, want 2", len(res.Extractions))
	}

	first := res.Extractions[0]
	if first.Class != "organization" || first.CharStart != 0 || first.CharEnd != 9 {
		t.Errorf("first = %+v, want organization at [0,9)", first)
	}
	if first.Attributes["role"] != "payer" {
		t.Errorf("attributes = %v", first.Attributes)
	}
	second := res.Extractions[1]
	if second.CharStart != 35 || second.CharEnd != 42 {
		t.Errorf("second span = [%d,%d), want [35,42)", second.CharStart, second.CharEnd)
	}
	for _, g := range res.Extractions {
		if doc[g.CharStart:g.CharEnd] != g.Text {
			t.Errorf("doc[%d:%d] = %q, want %q", g.CharStart, g.CharEnd, doc[g.CharStart:g.CharEnd], g.Text)
		}
	}

	d := res.Diagnostics
	if d.ChunkCount != 1 || d.ModelCalls != 1 || d.CandidatesSeen != 2 {
		t.Errorf("diagnostics = %+v", d)
	}
}

func TestAnnotateBareArrayResponse(t *testing.T) {
	doc := "ACME Corp agrees to pay Widget Inc $50,000."
	mock := providers.NewMockProvider()
	mock.Respond("ACME", `[{"extraction_class":"party","extraction_text":"ACME Corp"}, {"extraction_class":"party","extraction_text":"Widget Inc"}]`)

	task := &schema.TaskDefinition{
		Name:    "contracts",
		Prompt:  "Extract contract parties.",
		Classes: []string{"party"},
		Examples: []schema.ExampleDocument{
			{
				Text:        "Foo LLC hires Bar Ltd.",
				Extractions: []schema.Extraction{{Class: "party", Text: "Foo LLC"}, {Class: "party", Text: "Bar Ltd"}},
			},
		},
	}
	a, err := New(mock, task, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := a.Annotate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if len(res.Extractions) != 2 {
		t.Fatalf("extractions = %d, want 2", len(res.Extractions))
	}
	acme, widget := res.Extractions[0], res.Extractions[1]
	if acme.CharStart != 0 || acme.CharEnd != 9 {
		t.Errorf("ACME span = [%d,%d), want [0,9)", acme.CharStart, acme.CharEnd)
	}
	if want := strings.Index(doc, "Widget Inc"); widget.CharStart != want || widget.CharEnd != want+len("Widget Inc") {
		t.Errorf("Widget span = [%d,%d), want [%d,%d)", widget.CharStart, widget.CharEnd, want, want+len("Widget Inc"))
	}
}

func TestAnnotateEmptyDocument(t *testing.T) {
	mock := providers.NewMockProvider()
	a := mustAnnotator(t, mock, Options{})

	res, err := a.Annotate(context.Background(), "")
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if len(res.Extractions) != 0 {
		t.Errorf("extractions = %d, want 0", len(res.Extractions))
	}
	if mock.RequestCount() != 0 {
		t.Errorf("model calls = %d, want 0", mock.RequestCount())
	}
}

func TestAnnotateMultiChunkOffsets(t *testing.T) {
	doc := "First sentence about Alice. Second sentence about Bob."
	mock := providers.NewMockProvider()
	mock.Respond("Alice", `{"extractions": [{"extraction_class": "person", "extraction_text": "Alice"}]}`)
	mock.Respond("Second", `{"extractions": [{"extraction_class": "person", "extraction_text": "Bob"}]}`)

	a := mustAnnotator(t, mock, Options{MaxCharBuffer: 30})
	res, err := a.Annotate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	if res.Diagnostics.ChunkCount != 2 {
		t.Fatalf("chunks = %d, want 2", res.Diagnostics.ChunkCount)
	}
	if len(res.Extractions) != 2 {
		t.Fatalf("extractions = %d, want 2", len(res.Extractions))
	}
	if res.Extractions[0].Text != "Alice" || res.Extractions[1].Text != "Bob" {
		t.Fatalf("order = %q, %q", res.Extractions[0].Text, res.Extractions[1].Text)
	}
	// Offsets from the second chunk must be absolute, not chunk-local.
	bob := res.Extractions[1]
	if doc[bob.CharStart:bob.CharEnd] != "Bob" {
		t.Errorf("doc[%d:%d] = %q, want Bob", bob.CharStart, bob.CharEnd, doc[bob.CharStart:bob.CharEnd])
	}
}

func TestAnnotateFirstPassWins(t *testing.T) {
	doc := "First sentence about Alice."
	mock := providers.NewMockProvider()
	mock.Respond("Alice", `{"extractions": [{"extraction_class": "person", "extraction_text": "Alice"}]}`)

	a := mustAnnotator(t, mock, Options{Passes: 2})
	res, err := a.Annotate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	if res.Diagnostics.ModelCalls != 2 {
		t.Errorf("model calls = %d, want 2", res.Diagnostics.ModelCalls)
	}
	// Both passes find the same span; the duplicate from pass 2 is
	// dropped in favor of the pass 1 find.
	if len(res.Extractions) != 1 {
		t.Fatalf("extractions = %d, want 1", len(res.Extractions))
	}
	if res.Extractions[0].PassIndex != 0 {
		t.Errorf("pass index = %d, want 0", res.Extractions[0].PassIndex)
	}
}

func TestAnnotateWorkerCountInvariance(t *testing.T) {
	doc := "First sentence about Alice. Second sentence about Bob."
	run := func(workers int) []resolver.Grounded {
		mock := providers.NewMockProvider()
		mock.Respond("Alice", `{"extractions": [{"extraction_class": "person", "extraction_text": "Alice"}]}`)
		mock.Respond("Second", `{"extractions": [{"extraction_class": "person", "extraction_text": "Bob"}]}`)
		a := mustAnnotator(t, mock, Options{MaxCharBuffer: 30, MaxWorkers: workers, Passes: 2})
		res, err := a.Annotate(context.Background(), doc)
		if err != nil {
			t.Fatalf("Annotate(workers=%d) error = %v", workers, err)
		}
		return res.Extractions
	}

	serial := run(1)
	parallel := run(8)
	if !reflect.DeepEqual(serial, parallel) {
		t.Errorf("results differ by worker count:\n serial: %+v\n parallel: %+v", serial, parallel)
	}
}

func TestAnnotateRepeatedRunsIdentical(t *testing.T) {
	doc := "First sentence about Alice. Second sentence about Bob."
	mock := providers.NewMockProvider()
	mock.Respond("Alice", `{"extractions": [{"extraction_class": "person", "extraction_text": "Alice"}]}`)
	mock.Respond("Second", `{"extractions": [{"extraction_class": "person", "extraction_text": "Bob"}]}`)

	a := mustAnnotator(t, mock, Options{MaxCharBuffer: 30, MaxWorkers: 4})
	first, err := a.Annotate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	second, err := a.Annotate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	if !reflect.DeepEqual(first.Extractions, second.Extractions) {
		t.Errorf("repeated runs differ:\n first: %+v\n second: %+v", first.Extractions, second.Extractions)
	}
	if first.Diagnostics != second.Diagnostics {
		t.Errorf("diagnostics differ: %+v vs %+v", first.Diagnostics, second.Diagnostics)
	}
}

func TestAnnotateExtraPassesKeepEarlierSpans(t *testing.T) {
	doc := "First sentence about Alice. Second sentence about Bob."
	run := func(passes int) []resolver.Grounded {
		mock := providers.NewMockProvider()
		mock.Respond("Alice", `{"extractions": [{"extraction_class": "person", "extraction_text": "Alice"}]}`)
		mock.Respond("Second", `{"extractions": [{"extraction_class": "person", "extraction_text": "Bob"}]}`)
		a := mustAnnotator(t, mock, Options{MaxCharBuffer: 30, Passes: passes})
		res, err := a.Annotate(context.Background(), doc)
		if err != nil {
			t.Fatalf("Annotate(passes=%d) error = %v", passes, err)
		}
		return res.Extractions
	}

	single := run(1)
	multi := run(3)

	type span struct {
		class      string
		start, end int
	}
	got := make(map[span]bool, len(multi))
	for _, g := range multi {
		got[span{g.Class, g.CharStart, g.CharEnd}] = true
	}
	// Every span found in a single pass survives when more passes run.
	for _, g := range single {
		if !got[span{g.Class, g.CharStart, g.CharEnd}] {
			t.Errorf("span %q [%d,%d) lost with extra passes", g.Text, g.CharStart, g.CharEnd)
		}
	}
}

func TestAnnotateTemperatureResolution(t *testing.T) {
	zero := 0.0
	a := mustAnnotator(t, providers.NewMockProvider(), Options{Temperature: &zero})
	if a.temperature != 0 {
		t.Errorf("temperature = %v, want explicit 0", a.temperature)
	}

	b := mustAnnotator(t, providers.NewMockProvider(), Options{})
	if b.temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want default %v", b.temperature, DefaultTemperature)
	}
}

func TestAnnotateChunkFailureIsolation(t *testing.T) {
	doc := "First sentence about Alice. Second sentence about Bob."
	mock := providers.NewMockProvider()
	mock.Respond("Alice", `{"extractions": [{"extraction_class": "person", "extraction_text": "Alice"}]}`)
	mock.Respond("Second", `{"extractions": [{"extraction_class": "person", "extraction_text": "Bob"}]}`)
	mock.FailAfter = 1

	a := mustAnnotator(t, mock, Options{MaxCharBuffer: 30, MaxWorkers: 1})
	res, err := a.Annotate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if res.Diagnostics.BackendFailures != 1 {
		t.Errorf("backend failures = %d, want 1", res.Diagnostics.BackendFailures)
	}
	// The surviving chunk still contributes its extraction.
	if len(res.Extractions) != 1 {
		t.Errorf("extractions = %d, want 1", len(res.Extractions))
	}
}

func TestAnnotateAllCallsFailed(t *testing.T) {
	mock := providers.NewMockProvider()
	mock.ShouldFail = true

	a := mustAnnotator(t, mock, Options{})
	if _, err := a.Annotate(context.Background(), "some document"); err == nil {
		t.Fatal("expected error when every model call fails")
	}
}

func TestAnnotateParseFailureCounted(t *testing.T) {
	mock := providers.NewMockProvider()
	mock.Response = "I could not find anything."

	a := mustAnnotator(t, mock, Options{})
	res, err := a.Annotate(context.Background(), "some document")
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if res.Diagnostics.ParseFailures != 1 {
		t.Errorf("parse failures = %d, want 1", res.Diagnostics.ParseFailures)
	}
	if len(res.Extractions) != 0 {
		t.Errorf("extractions = %d, want 0", len(res.Extractions))
	}
}

func TestOverlapsSameClass(t *testing.T) {
	accepted := []resolver.Grounded{
		{Class: "person", CharStart: 10, CharEnd: 20},
	}

	tests := []struct {
		name string
		g    resolver.Grounded
		want bool
	}{
		{"identical span same class", resolver.Grounded{Class: "person", CharStart: 10, CharEnd: 20}, true},
		{"partial overlap same class", resolver.Grounded{Class: "person", CharStart: 15, CharEnd: 25}, true},
		{"adjacent same class", resolver.Grounded{Class: "person", CharStart: 20, CharEnd: 30}, false},
		{"identical span other class", resolver.Grounded{Class: "subject", CharStart: 10, CharEnd: 20}, false},
		{"disjoint", resolver.Grounded{Class: "person", CharStart: 0, CharEnd: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overlapsSameClass(accepted, tt.g); got != tt.want {
				t.Errorf("overlapsSameClass() = %v, want %v", got, tt.want)
			}
		})
	}
}
