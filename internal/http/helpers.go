package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"billed/internal/auth"
	"billed/internal/blob"
	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/newbill"
	"billed/internal/services"
	"billed/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Default().Error("Failed to encode response", log.FieldError, err)
	}
}

// writeError answers with {"error": msg} and the status matching err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidKey):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, blob.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrInvalidFileType), errors.Is(err, newbill.ErrInvalidFileType),
		errors.Is(err, newbill.ErrNoFile), errors.Is(err, newbill.ErrNoUpload):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrValidation), isCoreValidation(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func isCoreValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrInvalidType,
		core.ErrInvalidPct, core.ErrInvalidStatus, core.ErrEmptyName,
		core.ErrEmptyEmail, core.ErrCommentaryTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// formatEuros formats cents as a Euro currency string (e.g., "€12,34").
func formatEuros(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	euros := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(euros, 10) + "," + fmt.Sprintf("%02d", rem)
	if neg {
		return "-€" + s
	}
	return "€" + s
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
