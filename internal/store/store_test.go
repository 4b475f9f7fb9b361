package store

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"
)

func TestFormDataEncode(t *testing.T) {
	fd := NewFormData()
	fd.Append("email", "a@a")
	fd.AppendFile("file", File{Name: "test.jpg", Type: "image/jpeg", Content: []byte("test")})

	body, contentType, err := fd.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		t.Fatalf("unexpected content type %q (err=%v)", contentType, err)
	}

	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	if got := form.Value["email"]; len(got) != 1 || got[0] != "a@a" {
		t.Fatalf("email field = %v", got)
	}
	files := form.File["file"]
	if len(files) != 1 || files[0].Filename != "test.jpg" || files[0].Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("unexpected file parts %+v", files)
	}
	f, _ := files[0].Open()
	defer f.Close()
	content, _ := io.ReadAll(f)
	if string(content) != "test" {
		t.Fatalf("file content = %q", content)
	}
}

func TestFormDataAccessors(t *testing.T) {
	fd := NewFormData()
	if _, ok := fd.Get("email"); ok {
		t.Fatalf("empty form has no email")
	}
	fd.Append("email", "a@a")
	fd.AppendFile("file", File{Name: "x.png", Content: []byte{1, 2}})
	if v, _ := fd.Get("email"); v != "a@a" {
		t.Fatalf("Get = %q", v)
	}
	if f, ok := fd.File("file"); !ok || f.Size() != 2 {
		t.Fatalf("File = %+v", f)
	}
}

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("update: %w", &APIError{Status: http.StatusNotFound, Message: "bill not found"})
	if !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 match")
	}
	if IsStatus(err, http.StatusForbidden) {
		t.Fatalf("unexpected 403 match")
	}
	if IsStatus(nil, http.StatusNotFound) {
		t.Fatalf("nil error never matches")
	}
}
