// Package ingest loads source documents from a file path, an HTTP(S)
// URL, or stdin, normalizing them to valid UTF-8 text.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDocumentBytes caps how much document text a single run will
// accept from any source.
const MaxDocumentBytes = 32 << 20

const fetchTimeout = 60 * time.Second

// StdinSource selects standard input.
const StdinSource = "-"

// Read loads the document named by source: "-" reads stdin, an
// http(s) URL is downloaded, anything else is treated as a file path.
func Read(ctx context.Context, source string, stdin io.Reader) (string, error) {
	switch {
	case source == StdinSource:
		return readAll(stdin, "stdin")
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return fetch(ctx, source)
	default:
		return readFile(source)
	}
}

func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()
	return readAll(f, path)
}

func fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid document URL: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch document: %s returned status %d", url, resp.StatusCode)
	}
	return readAll(resp.Body, url)
}

// readAll reads at most MaxDocumentBytes and rejects longer input
// rather than silently truncating it.
func readAll(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) > MaxDocumentBytes {
		return "", fmt.Errorf("document %s exceeds the %d byte limit", name, MaxDocumentBytes)
	}
	return Sanitize(string(data)), nil
}

// Sanitize strips a UTF-8 BOM and replaces invalid byte sequences with
// the replacement character so offsets computed downstream always index
// valid text.
func Sanitize(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}
	return text
}
