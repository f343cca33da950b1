package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("hello from a file"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Read(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "hello from a file" {
		t.Errorf("Read() = %q", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(context.Background(), "/nonexistent/doc.txt", nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadStdin(t *testing.T) {
	got, err := Read(context.Background(), StdinSource, strings.NewReader("piped text"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "piped text" {
		t.Errorf("Read() = %q", got)
	}
}

func TestReadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fetched document"))
	}))
	defer srv.Close()

	got, err := Read(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "fetched document" {
		t.Errorf("Read() = %q", got)
	}
}

func TestReadURLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := Read(context.Background(), srv.URL, nil); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", "plain text", "plain text"},
		{"bom stripped", "\ufeffplain text", "plain text"},
		{"invalid bytes replaced", "abc\xff\xfedef", "abc��def"},
		{"multibyte preserved", "größe café", "größe café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReadRejectsOversizedInput(t *testing.T) {
	// A reader that claims more than the cap without allocating it.
	r := &repeatReader{n: MaxDocumentBytes + 2}
	if _, err := readAll(r, "big"); err == nil {
		t.Error("expected error for oversized document")
	}
}

type repeatReader struct{ n int }

func (r *repeatReader) Read(p []byte) (int, error) {
	if r.n <= 0 {
		return 0, io.EOF
	}
	n := len(p)
	if n > r.n {
		n = r.n
	}
	for i := 0; i < n; i++ {
		p[i] = 'a'
	}
	r.n -= n
	return n, nil
}
