package mem

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFileCOW(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	content := []byte("copy on write contents")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	m, err := OpenFileCOW(path)
	if err != nil {
		t.Fatalf("OpenFileCOW: %v", err)
	}
	defer m.Close()

	if m.FileSize() != int64(len(content)) {
		t.Errorf("file size = %d, want %d", m.FileSize(), len(content))
	}
	if m.Len() != PageCeil(uint64(len(content))) {
		t.Errorf("mapped length = %d, want page-rounded %d", m.Len(), PageCeil(uint64(len(content))))
	}
	if !bytes.Equal(m.Bytes()[:len(content)], content) {
		t.Error("mapped bytes do not match file contents")
	}
	// Bytes past the file's end read as zero.
	for i := uint64(len(content)); i < m.Len(); i++ {
		if m.Bytes()[i] != 0 {
			t.Fatalf("byte %d past file end = %d, want 0", i, m.Bytes()[i])
		}
	}
}

func TestFileCOWWritesStayPrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	content := []byte("original")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	m, err := OpenFileCOW(path)
	if err != nil {
		t.Fatalf("OpenFileCOW: %v", err)
	}
	defer m.Close()

	copy(m.Bytes(), []byte("mutated!"))

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(after, content) {
		t.Errorf("file changed to %q, writes must not propagate", after)
	}
}

func TestFileCOWRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	m, err := OpenFileCOW(path)
	if err != nil {
		t.Fatalf("OpenFileCOW: %v", err)
	}
	defer m.Close()

	r := m.Region(2*PageSize(), KindData)
	if err := r.Validate(); err != nil {
		t.Errorf("mapped file region should validate: %v", err)
	}
	if r.Backing != BackingFileCOW {
		t.Errorf("backing = %v, want BackingFileCOW", r.Backing)
	}
}

func TestOpenFileCOWErrors(t *testing.T) {
	if _, err := OpenFileCOW(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := OpenFileCOW(empty); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestMappedFileCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	m, err := OpenFileCOW(path)
	if err != nil {
		t.Fatalf("OpenFileCOW: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
