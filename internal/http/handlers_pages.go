package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/newbill"
	"billed/internal/routes"
	"billed/internal/store"
	appweb "billed/web"
)

var pageNames = []string{"login.html", "bills.html", "newbill.html"}

var templateFuncs = template.FuncMap{
	// iconClass marks the vertical layout icon of the current page.
	"iconClass": func(active, icon string) string {
		if active == icon {
			return "active-icon"
		}
		return ""
	},
	"euros": func(m core.Money) string { return formatEuros(m.Cents) },
}

// pageData feeds the layout and every page. Email is set only for a
// signed-in viewer; the layout shows the navbar when it is present.
type pageData struct {
	Title      string
	Email      string
	LoginEmail string
	Admin      bool
	ActiveIcon string
	Error      string
	Bills      []core.Bill
	Types      []core.ExpenseType
	Values     newbill.FormValues
	Today      string
}

// parsePages parses each page together with the shared layout.
func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, data pageData) {
	t, ok := s.pages[name]
	if !ok {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed", "template", name, log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func sessionPage(sess core.Session, path, title string) pageData {
	return pageData{
		Title:      title,
		Email:      sess.Email,
		Admin:      sess.IsAdmin(),
		ActiveIcon: routes.ActiveIcon(path),
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.cookieSession(r); ok {
		http.Redirect(w, r, routes.Bills, http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", http.StatusOK, pageData{Title: "Connexion"})
}

func (s *Server) handleBillsPage(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	data := sessionPage(sess, routes.Bills, "Mes notes de frais")
	bills, err := s.deps.Bills.List(r.Context(), sess)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Bills list error", log.FieldError, err)
		data.Error = "Impossible de charger les notes de frais"
	}
	data.Bills = bills
	s.render(w, r, "bills.html", http.StatusOK, data)
}

func (s *Server) newBillPage(sess core.Session) pageData {
	data := sessionPage(sess, routes.NewBill, "Envoyer une note de frais")
	data.Types = core.ExpenseTypes()
	data.Today = time.Now().Format("2006-01-02")
	return data
}

func (s *Server) handleNewBillPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "newbill.html", http.StatusOK, s.newBillPage(viewer(r)))
}

// handleNewBillForm runs the NewBill form against the bills service: the
// receipt is uploaded first, then the metadata is submitted for it.
func (s *Server) handleNewBillForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := viewer(r)
	data := s.newBillPage(sess)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.renderFormError(w, r, data, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	data.Values = newbill.FormValues{
		Type:       sanitizeInput(r.FormValue("type")),
		Name:       sanitizeInput(r.FormValue("name")),
		Amount:     sanitizeInput(r.FormValue("amount")),
		Date:       sanitizeInput(r.FormValue("date")),
		VAT:        sanitizeInput(r.FormValue("vat")),
		Pct:        sanitizeInput(r.FormValue("pct")),
		Commentary: sanitizeInput(r.FormValue("commentary")),
	}

	sel, err := fileSelection(r)
	if err != nil {
		s.renderFormError(w, r, data, err)
		return
	}

	nav := &routes.Recorder{}
	form := newbill.New(serviceStore{bills: s.deps.Bills, viewer: sess}, sess, nav,
		newbill.Rules{RequireUpload: true}, log.FromContext(ctx))

	if _, err := form.HandleChangeFile(ctx, sel); err != nil {
		s.renderFormError(w, r, data, err)
		return
	}
	if _, err := form.HandleSubmit(ctx, data.Values); err != nil {
		s.renderFormError(w, r, data, err)
		return
	}
	http.Redirect(w, r, nav.Last(), http.StatusSeeOther)
}

func fileSelection(r *http.Request) (newbill.FileSelection, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return newbill.FileSelection{}, newbill.ErrNoFile
	}
	if err != nil {
		return newbill.FileSelection{}, fmt.Errorf("read file part: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return newbill.FileSelection{}, fmt.Errorf("read file part: %w", err)
	}
	return newbill.FileSelection{
		Value: header.Filename,
		Files: []store.File{{
			Name:    header.Filename,
			Type:    header.Header.Get("Content-Type"),
			Content: content,
		}},
	}, nil
}

func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, data pageData, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "New bill form failed", log.FieldError, err)
		data.Error = "Une erreur est survenue, veuillez réessayer"
	} else {
		data.Error = err.Error()
	}
	s.render(w, r, "newbill.html", status, data)
}

// serviceStore exposes the bills service as the bills resource of the form.
type serviceStore struct {
	bills  BillService
	viewer core.Session
}

func (st serviceStore) Bills() store.Bills { return st }

func (st serviceStore) Create(ctx context.Context, req store.CreateRequest) (core.UploadResult, error) {
	if req.Data == nil {
		return core.UploadResult{}, newbill.ErrNoFile
	}
	file, ok := req.Data.File("file")
	if !ok {
		return core.UploadResult{}, newbill.ErrNoFile
	}
	email, _ := req.Data.Get("email")
	return st.bills.Upload(ctx, st.viewer, email, file.Name, bytes.NewReader(file.Content))
}

func (st serviceStore) Update(ctx context.Context, req store.UpdateRequest) (core.Bill, error) {
	return st.bills.Submit(ctx, st.viewer, req.Selector, req.Data)
}

func (st serviceStore) List(ctx context.Context) ([]core.Bill, error) {
	return st.bills.List(ctx, st.viewer)
}
