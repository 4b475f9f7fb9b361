package newbill

import (
	"errors"
	"fmt"
)

var (
	ErrNoFile          = errors.New("no file selected")
	ErrInvalidFileType = errors.New("file type not allowed")
	ErrNoUpload        = errors.New("no receipt uploaded for this bill")
)

// UploadError is returned when the receipt could not be stored.
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmitError is returned when the bill update was rejected.
type SubmitError struct {
	BillID string
	Err    error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit bill %s: %v", e.BillID, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }
