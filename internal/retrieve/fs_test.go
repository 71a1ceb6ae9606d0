package retrieve

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct {
	data string
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.ErrUnexpectedEOF
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestOSFileSystem(t *testing.T) {
	t.Parallel()

	var fsys OSFileSystem

	t.Run("MkdirAll is idempotent", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "a", "b")
		for range 2 {
			if err := fsys.MkdirAll(dir); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	})

	t.Run("Exists", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "f.pdf")
		if ok, err := fsys.Exists(path); ok || err != nil {
			t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		if ok, err := fsys.Exists(path); !ok || err != nil {
			t.Errorf("expected (true, nil), got (%v, %v)", ok, err)
		}
	})

	t.Run("WriteAtomic writes content", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "f.pdf")
		n, err := fsys.WriteAtomic(path, strings.NewReader(pdfBody))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != int64(len(pdfBody)) {
			t.Errorf("expected %d bytes, got %d", len(pdfBody), n)
		}
		data, err := os.ReadFile(path)
		if err != nil || string(data) != pdfBody {
			t.Errorf("unexpected content %q (err %v)", data, err)
		}
	})

	t.Run("WriteAtomic leaves nothing on failure", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "f.pdf")
		_, err := fsys.WriteAtomic(path, &failingReader{data: "%PDF-1.7 partial"})
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty directory, found %d entries", len(entries))
		}
	})

	t.Run("WriteAtomic keeps the previous file on failure", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "f.pdf")
		if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := fsys.WriteAtomic(path, &failingReader{data: "new"}); err == nil {
			t.Fatal("expected error")
		}
		data, _ := os.ReadFile(path)
		if string(data) != "old" {
			t.Errorf("expected previous content, got %q", data)
		}
	})
}
