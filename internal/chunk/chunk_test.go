package chunk

import (
	"strings"
	"testing"
)

func reassemble(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestSplitZeroBudgetSingleChunk(t *testing.T) {
	doc := "The quick brown fox jumps over the lazy dog."
	chunks := Split(doc, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != doc {
		t.Errorf("chunk text = %q, want full document", chunks[0].Text)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len(doc) {
		t.Errorf("offsets = (%d,%d), want (0,%d)", chunks[0].StartOffset, chunks[0].EndOffset, len(doc))
	}
}

func TestSplitEmpty(t *testing.T) {
	if chunks := Split("", 100); chunks != nil {
		t.Errorf("expected nil for empty document, got %v", chunks)
	}
}

func TestSplitReconstruction(t *testing.T) {
	docs := []string{
		"Short.",
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50),
		strings.Repeat("one two three four five six seven eight nine ten ", 40),
		strings.Repeat("x", 5000),
		"First line.\nSecond line is a bit longer than the first one.\n" + strings.Repeat("Body text here. ", 100),
		strings.Repeat("héllo wörld — ünïcode test. ", 60),
	}
	budgets := []int{1, 10, 64, 100, 1500}

	for _, doc := range docs {
		for _, budget := range budgets {
			chunks := Split(doc, budget)
			if got := reassemble(chunks); got != doc {
				t.Fatalf("budget %d: reconstruction mismatch (len %d vs %d)", budget, len(got), len(doc))
			}
			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("budget %d: chunk %d has index %d", budget, i, c.Index)
				}
				if doc[c.StartOffset:c.EndOffset] != c.Text {
					t.Errorf("budget %d: chunk %d text does not match offsets", budget, i)
				}
				if i > 0 && chunks[i-1].EndOffset != c.StartOffset {
					t.Errorf("budget %d: gap between chunk %d and %d", budget, i-1, i)
				}
			}
		}
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	doc := "First sentence ends here. Second sentence is also here. Third one too."
	chunks := Split(doc, 40)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(strings.TrimRight(chunks[0].Text, " "), ".") {
		t.Errorf("first chunk should end at a sentence boundary, got %q", chunks[0].Text)
	}
}

func TestSplitPrefersNewline(t *testing.T) {
	doc := "alpha beta gamma delta\nepsilon zeta eta theta iota kappa"
	chunks := Split(doc, 30)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n") {
		t.Errorf("first chunk should end at the newline, got %q", chunks[0].Text)
	}
}

func TestSplitAvoidsMidWordCut(t *testing.T) {
	doc := strings.Repeat("alpha bravo charlie delta echo ", 20)
	chunks := Split(doc, 50)
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, " ") {
			t.Errorf("chunk %d cuts mid-word: %q", i, c.Text)
		}
	}
}

func TestSplitHardCutWithoutBoundary(t *testing.T) {
	doc := strings.Repeat("a", 250)
	chunks := Split(doc, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Text) != 100 || len(chunks[1].Text) != 100 || len(chunks[2].Text) != 50 {
		t.Errorf("chunk lengths = %d,%d,%d", len(chunks[0].Text), len(chunks[1].Text), len(chunks[2].Text))
	}
}

func TestSplitNeverTearsRunes(t *testing.T) {
	doc := strings.Repeat("日本語テキスト", 100)
	for _, budget := range []int{7, 16, 50} {
		chunks := Split(doc, budget)
		if got := reassemble(chunks); got != doc {
			t.Fatalf("budget %d: reconstruction mismatch", budget)
		}
		for i, c := range chunks {
			if !strings.ContainsRune("日本語テキスト", []rune(c.Text)[0]) {
				t.Errorf("budget %d: chunk %d starts mid-rune", budget, i)
			}
		}
	}
}
