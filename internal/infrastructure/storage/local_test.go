package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	apperrors "library-qa-api/pkg/errors"
)

func newTestLibrary(t *testing.T) *LocalLibrary {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"guide.pdf":        "%PDF-fake",
		"notes.txt":        "notes",
		"sub/chapter.md":   "chapter",
		"sub/ignored.exe":  "binary",
		".hidden/spam.txt": "spam",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	lib, err := NewLocalLibrary(root, []string{".pdf", "txt", ".md"})
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	return lib
}

func TestListFiltersByExtension(t *testing.T) {
	lib := newTestLibrary(t)
	got, err := lib.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"guide.pdf", "notes.txt", "sub/chapter.md"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
}

func TestResolveInsideRoot(t *testing.T) {
	lib := newTestLibrary(t)
	abs, err := lib.Resolve("sub/chapter.md")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if abs != filepath.Join(lib.Root(), "sub", "chapter.md") {
		t.Errorf("abs = %q", abs)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	lib := newTestLibrary(t)
	for _, rel := range []string{
		"../secret.txt",
		"sub/../../secret.txt",
		"/etc/passwd",
		"",
	} {
		if _, err := lib.Resolve(rel); !apperrors.HasCode(err, apperrors.CodeDocumentNotFound) {
			t.Errorf("Resolve(%q) = %v, want document-not-found", rel, err)
		}
	}
}

func TestResolveRejectsUnsupportedExtension(t *testing.T) {
	lib := newTestLibrary(t)
	if _, err := lib.Resolve("sub/ignored.exe"); !apperrors.HasCode(err, apperrors.CodeDocumentNotFound) {
		t.Errorf("expected document-not-found for unsupported extension, got %v", err)
	}
}
