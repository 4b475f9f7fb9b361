package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func newStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(t.TempDir(), "http://localhost:8081/files/")
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return s
}

func TestSaveAndOpen(t *testing.T) {
	s := newStore(t)

	obj, err := s.Save(context.Background(), "Receipt.JPG", strings.NewReader("jpeg bytes"), 1024)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(obj.Key, ".jpg") {
		t.Errorf("key %q should keep the extension", obj.Key)
	}
	if obj.URL != "http://localhost:8081/files/"+obj.Key {
		t.Errorf("url = %q", obj.URL)
	}
	if obj.Size != int64(len("jpeg bytes")) {
		t.Errorf("size = %d", obj.Size)
	}

	rc, ct, err := s.Open(obj.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "jpeg bytes" || ct != "image/jpeg" {
		t.Errorf("Open = %q (%s)", got, ct)
	}

	if err := s.Delete(obj.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Open(obj.Key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after delete err = %v", err)
	}
}

func TestSaveTooLarge(t *testing.T) {
	s := newStore(t)
	_, err := s.Save(context.Background(), "big.png", bytes.NewReader(make([]byte, 2048)), 1024)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestOpenRejectsForeignKeys(t *testing.T) {
	s := newStore(t)
	for _, key := range []string{"../etc/passwd", "notes.txt", `..\x.jpg`, ""} {
		if _, _, err := s.Open(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Open(%q) err = %v", key, err)
		}
	}
}
