package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"billed/internal/core"
	"billed/internal/log"
)

const multipartMemory = 1 << 20

func (s *Server) maxUploadBytes() int64 {
	if s.deps.Config != nil && s.deps.Config.MaxUploadBytes > 0 {
		return s.deps.Config.MaxUploadBytes
	}
	return 10 << 20
}

// handleCreateBill stores the receipt posted as multipart fields file and
// email and answers 201 with the file URL and the new bill key.
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// Room for the other parts and the multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart body"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file part"})
		return
	}
	defer file.Close()

	res, err := s.deps.Bills.Upload(ctx, viewer(r), sanitizeInput(r.FormValue("email")), header.Filename, file)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Upload rejected",
			log.FieldFileName, header.Filename,
			log.FieldError, err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var in core.Bill
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid json: %v", err)})
		return
	}

	bill, err := s.deps.Bills.Submit(r.Context(), viewer(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.deps.Bills.List(r.Context(), viewer(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bills == nil {
		bills = []core.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.deps.Bills.Get(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handleFile streams a stored receipt. Keys are unguessable.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := s.deps.Files.Open(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Receipt stream interrupted", log.FieldError, err)
	}
}
