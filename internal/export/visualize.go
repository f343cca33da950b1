package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/gleanlabs/glean/internal/annotate"
	"github.com/gleanlabs/glean/internal/resolver"
)

//go:embed visualize.html
var templateFS embed.FS

var visualizeTmpl = template.Must(template.ParseFS(templateFS, "visualize.html"))

// palette cycles per class in order of first appearance.
var palette = []string{
	"#ffd54f", "#81d4fa", "#a5d6a7", "#f48fb1", "#ce93d8",
	"#ffab91", "#80cbc4", "#b0bec5", "#fff59d", "#9fa8da",
}

type segment struct {
	Text    string
	Class   string
	Color   string
	Tooltip string
}

type legendEntry struct {
	Class string
	Color string
	Count int
}

type visualizeData struct {
	Title       string
	RunID       string
	Segments    []segment
	Legend      []legendEntry
	Total       int
	Diagnostics annotate.Diagnostics
}

// WriteHTML renders a self-contained visualization: the document text
// with each grounded span highlighted in its class color, attribute
// tooltips, and a per-class legend with counts.
func WriteHTML(w io.Writer, title string, res *annotate.Result) error {
	colors := classColors(res.Extractions)
	counts := ClassCounts(res)

	data := visualizeData{
		Title:       title,
		RunID:       res.RunID,
		Segments:    buildSegments(res.DocumentText, res.Extractions, colors),
		Total:       len(res.Extractions),
		Diagnostics: res.Diagnostics,
	}
	for _, class := range sortedClasses(res.Extractions) {
		data.Legend = append(data.Legend, legendEntry{
			Class: class,
			Color: colors[class],
			Count: counts[class],
		})
	}

	if err := visualizeTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render visualization: %w", err)
	}
	return nil
}

func classColors(extractions []resolver.Grounded) map[string]string {
	colors := make(map[string]string)
	for i, class := range sortedClasses(extractions) {
		colors[class] = palette[i%len(palette)]
	}
	return colors
}

// buildSegments slices the document into plain and highlighted runs.
// Extractions are already ordered by start offset; a span that starts
// inside the previously rendered one (cross-class overlap) is skipped
// in the rendering, though it remains in the data exports.
func buildSegments(text string, extractions []resolver.Grounded, colors map[string]string) []segment {
	var segs []segment
	pos := 0
	for _, g := range extractions {
		if g.CharStart < pos {
			continue
		}
		if g.CharStart > pos {
			segs = append(segs, segment{Text: text[pos:g.CharStart]})
		}
		segs = append(segs, segment{
			Text:    text[g.CharStart:g.CharEnd],
			Class:   g.Class,
			Color:   colors[g.Class],
			Tooltip: tooltip(g),
		})
		pos = g.CharEnd
	}
	if pos < len(text) {
		segs = append(segs, segment{Text: text[pos:]})
	}
	return segs
}

func tooltip(g resolver.Grounded) string {
	s := fmt.Sprintf("%s [%d:%d]", g.Class, g.CharStart, g.CharEnd)
	keys := make([]string, 0, len(g.Attributes))
	for k := range g.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s += fmt.Sprintf("\n%s: %s", k, g.Attributes[k])
	}
	return s
}
