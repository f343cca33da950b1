// Package export renders extraction results as JSONL, flat JSON, or a
// self-contained HTML visualization.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gleanlabs/glean/internal/annotate"
	"github.com/gleanlabs/glean/internal/resolver"
)

// AnnotatedDocument is one JSONL record: the document text plus its
// ordered, grounded extractions.
type AnnotatedDocument struct {
	RunID       string              `json:"run_id,omitempty"`
	Text        string              `json:"text"`
	Extractions []resolver.Grounded `json:"extractions"`
}

// FlatExtraction is the reduced shape used by the flat JSON export,
// matching what a downstream consumer needs without offsets.
type FlatExtraction struct {
	Class      string            `json:"class"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// WriteJSONL writes one AnnotatedDocument line per result.
func WriteJSONL(w io.Writer, results ...*annotate.Result) error {
	enc := json.NewEncoder(w)
	for _, res := range results {
		rec := AnnotatedDocument{
			RunID:       res.RunID,
			Text:        res.DocumentText,
			Extractions: res.Extractions,
		}
		if rec.Extractions == nil {
			rec.Extractions = []resolver.Grounded{}
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	return nil
}

// ReadJSONL decodes AnnotatedDocument records, one per line.
func ReadJSONL(r io.Reader) ([]AnnotatedDocument, error) {
	var docs []AnnotatedDocument
	dec := json.NewDecoder(r)
	for {
		var rec AnnotatedDocument
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(docs)+1, err)
		}
		docs = append(docs, rec)
	}
	return docs, nil
}

// WriteJSON writes the flat extraction array for one result.
func WriteJSON(w io.Writer, res *annotate.Result) error {
	flat := make([]FlatExtraction, 0, len(res.Extractions))
	for _, g := range res.Extractions {
		flat = append(flat, FlatExtraction{
			Class:      g.Class,
			Text:       g.Text,
			Attributes: g.Attributes,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(flat); err != nil {
		return fmt.Errorf("failed to encode extractions: %w", err)
	}
	return nil
}

// ClassCounts returns per-class extraction counts.
func ClassCounts(res *annotate.Result) map[string]int {
	counts := make(map[string]int)
	for _, g := range res.Extractions {
		counts[g.Class]++
	}
	return counts
}

// FilterClasses returns a copy of the extractions restricted to the
// given classes. An empty filter keeps everything.
func FilterClasses(extractions []resolver.Grounded, classes []string) []resolver.Grounded {
	if len(classes) == 0 {
		return extractions
	}
	keep := make(map[string]bool, len(classes))
	for _, c := range classes {
		keep[c] = true
	}
	var out []resolver.Grounded
	for _, g := range extractions {
		if keep[g.Class] {
			out = append(out, g)
		}
	}
	return out
}

// sortedClasses returns the distinct classes in order of first
// appearance in the document, for stable color assignment.
func sortedClasses(extractions []resolver.Grounded) []string {
	seen := make(map[string]int)
	var classes []string
	for _, g := range extractions {
		if _, ok := seen[g.Class]; !ok {
			seen[g.Class] = len(classes)
			classes = append(classes, g.Class)
		}
	}
	return classes
}
