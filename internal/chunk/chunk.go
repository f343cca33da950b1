// Package chunk splits documents into contiguous segments bounded by a
// character budget, preserving absolute byte offsets into the original
// text. Chunks never overlap and never leave gaps: concatenating them
// in order reproduces the document exactly.
package chunk

import (
	"unicode"
	"unicode/utf8"
)

// Chunk is one contiguous slice of a document.
// Invariant: Text == document[StartOffset:EndOffset].
type Chunk struct {
	Index       int
	StartOffset int
	EndOffset   int
	Text        string
}

// boundaryTolerance caps how far back from the budget the splitter
// searches for a sentence or whitespace boundary before falling back
// to a hard cut.
const boundaryTolerance = 200

// Split divides text into ordered chunks of at most maxCharBuffer
// bytes. A budget of 0 (or a budget that already covers the text)
// yields a single chunk spanning the whole document.
//
// Cut points prefer, in order: a sentence end, a newline, any
// whitespace — searched backwards from the budget within a tolerance
// window — and finally a hard cut at the budget aligned to a rune
// boundary so multi-byte characters are never torn.
func Split(text string, maxCharBuffer int) []Chunk {
	if text == "" {
		return nil
	}
	if maxCharBuffer <= 0 || len(text) <= maxCharBuffer {
		return []Chunk{{Index: 0, StartOffset: 0, EndOffset: len(text), Text: text}}
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + maxCharBuffer
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end)
		}
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			StartOffset: start,
			EndOffset:   end,
			Text:        text[start:end],
		})
		start = end
	}
	return chunks
}

// cutPoint picks the split position inside (start, limit]. The returned
// position always advances past start so splitting terminates.
func cutPoint(text string, start, limit int) int {
	window := limit - boundaryTolerance
	if window < start+1 {
		window = start + 1
	}

	if p := lastSentenceEnd(text, window, limit); p > start {
		return p
	}
	if p := lastNewline(text, window, limit); p > start {
		return p
	}
	if p := lastWhitespace(text, window, limit); p > start {
		return p
	}

	// Hard cut: back off to a rune boundary.
	for limit > start+1 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}

// lastSentenceEnd returns the position just after the last sentence
// terminator followed by whitespace in [lo, hi), or -1.
func lastSentenceEnd(text string, lo, hi int) int {
	for i := hi - 1; i > lo; i-- {
		c := text[i-1]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i < len(text) && isSpaceByte(text[i]) {
			// Cut after the whitespace run so the next chunk starts
			// at the next sentence.
			j := i
			for j < hi && isSpaceByte(text[j]) {
				j++
			}
			return j
		}
	}
	return -1
}

func lastNewline(text string, lo, hi int) int {
	for i := hi - 1; i >= lo; i-- {
		if text[i] == '\n' {
			return i + 1
		}
	}
	return -1
}

func lastWhitespace(text string, lo, hi int) int {
	for i := hi - 1; i >= lo; i-- {
		if text[i] < utf8.RuneSelf {
			if isSpaceByte(text[i]) {
				return i + 1
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if size > 0 && unicode.IsSpace(r) && i+size <= hi {
			return i + size
		}
	}
	return -1
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
