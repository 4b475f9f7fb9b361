// Package store defines the bills resource the NewBill form talks to.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"

	"billed/internal/core"
)

type (
	// Store gives access to the remote resources.
	Store interface {
		Bills() Bills
	}

	// Bills is the remote bills resource.
	Bills interface {
		// Create stores a receipt and returns its public URL and bill key.
		Create(ctx context.Context, req CreateRequest) (core.UploadResult, error)
		// Update replaces the bill identified by req.Selector.
		Update(ctx context.Context, req UpdateRequest) (core.Bill, error)
		// List returns the bills visible to the current user.
		List(ctx context.Context) ([]core.Bill, error)
	}
)

// Headers tunes how a request is sent.
type Headers struct {
	// NoContentType lets the transport derive Content-Type from the body
	// (multipart boundary) instead of forcing application/json.
	NoContentType bool
}

type CreateRequest struct {
	Data    *FormData
	Headers Headers
}

type UpdateRequest struct {
	Data     core.Bill
	Selector string
}

// APIError is a non-2xx answer from the bills resource.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bills api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// File is a selected file with its content.
type File struct {
	Name    string
	Type    string
	Content []byte
}

// Size returns the content length in bytes.
func (f File) Size() int64 { return int64(len(f.Content)) }

// FormData is a multipart payload: plain fields plus file parts.
type FormData struct {
	fields map[string]string
	files  map[string]File
}

func NewFormData() *FormData {
	return &FormData{fields: make(map[string]string), files: make(map[string]File)}
}

// Append sets a plain field.
func (f *FormData) Append(name, value string) {
	f.fields[name] = value
}

// AppendFile sets a file part.
func (f *FormData) AppendFile(name string, file File) {
	f.files[name] = file
}

// Get returns a plain field value.
func (f *FormData) Get(name string) (string, bool) {
	v, ok := f.fields[name]
	return v, ok
}

// File returns a file part.
func (f *FormData) File(name string) (File, bool) {
	v, ok := f.files[name]
	return v, ok
}

// Encode writes the payload as multipart/form-data and returns the body and
// its Content-Type, boundary included. Parts are written in name order.
func (f *FormData) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range sortedKeys(f.fields) {
		if err := w.WriteField(name, f.fields[name]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}
	for _, name := range sortedKeys(f.files) {
		file := f.files[name]
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, file.Name))
		ct := file.Type
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", name, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
