// Package newbill implements the NewBill form: attaching a receipt to a new
// expense report and submitting the report metadata.
package newbill

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"billed/internal/core"
	"billed/internal/log"
	"billed/internal/routes"
	"billed/internal/store"
)

// DefaultAllowedExtensions are the receipt formats accepted by the form.
var DefaultAllowedExtensions = []string{"jpg", "jpeg", "png"}

// Rules tune the form behavior.
type Rules struct {
	// RequireUpload makes HandleSubmit fail with ErrNoUpload when no receipt
	// was stored first.
	RequireUpload bool
	// AllowedExtensions restricts selectable files. Empty means
	// DefaultAllowedExtensions.
	AllowedExtensions []string
	// NavigateOnError keeps navigating to the bills list after a failed update.
	NavigateOnError bool
}

// DefaultRules matches the behavior of the web form.
func DefaultRules() Rules {
	return Rules{
		AllowedExtensions: DefaultAllowedExtensions,
		NavigateOnError:   true,
	}
}

// FileSelection is the content of the file input after a change.
type FileSelection struct {
	// Value is the raw input value, e.g. C:\fakepath\test.jpg.
	Value string
	Files []store.File
}

// FormValues are the form fields read at submit time.
type FormValues struct {
	Type       string
	Name       string
	Amount     string
	Date       string
	VAT        string
	Pct        string
	Commentary string
}

type Form struct {
	store     store.Store
	session   core.Session
	navigator routes.Navigator
	rules     Rules
	logger    *log.Logger
	draft     Draft
}

func New(st store.Store, s core.Session, nav routes.Navigator, rules Rules, logger *log.Logger) *Form {
	if len(rules.AllowedExtensions) == 0 {
		rules.AllowedExtensions = DefaultAllowedExtensions
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Form{
		store:     st,
		session:   s,
		navigator: nav,
		rules:     rules,
		logger:    logger.WithComponent(log.ComponentNewBill),
	}
}

// Draft exposes the state recorded by HandleChangeFile.
func (f *Form) Draft() *Draft { return &f.draft }

// HandleChangeFile uploads the first selected file and records the bill key
// and file URL returned by the bills resource.
func (f *Form) HandleChangeFile(ctx context.Context, sel FileSelection) (core.UploadResult, error) {
	if len(sel.Files) == 0 {
		return core.UploadResult{}, ErrNoFile
	}
	file := sel.Files[0]

	name := baseName(sel.Value)
	if name == "" {
		name = baseName(file.Name)
	}
	if !f.allowed(name) {
		f.logger.Warn("Rejected receipt", log.FieldFileName, name)
		return core.UploadResult{}, &UploadError{FileName: name, Err: ErrInvalidFileType}
	}

	data := store.NewFormData()
	data.AppendFile("file", store.File{Name: name, Type: file.Type, Content: file.Content})
	data.Append("email", f.session.Email)

	res, err := f.store.Bills().Create(ctx, store.CreateRequest{
		Data:    data,
		Headers: store.Headers{NoContentType: true},
	})
	if err != nil {
		f.logger.Error("Receipt upload failed",
			log.FieldFileName, name,
			log.FieldEmail, f.session.Email,
			log.FieldError, err)
		return core.UploadResult{}, &UploadError{FileName: name, Err: err}
	}

	f.draft.record(res.Key, res.FileURL, name)
	f.logger.Info("Receipt uploaded",
		log.FieldBillID, res.Key,
		log.FieldFileURL, res.FileURL,
		log.FieldSize, file.Size())
	return res, nil
}

// HandleSubmit sends the bill metadata for the uploaded receipt and then
// navigates to the bills list.
func (f *Form) HandleSubmit(ctx context.Context, v FormValues) (core.Bill, error) {
	snap := f.draft.Snapshot()
	if f.rules.RequireUpload && !snap.Uploaded() {
		return core.Bill{}, ErrNoUpload
	}

	bill, err := f.buildBill(v, snap)
	if err != nil {
		return core.Bill{}, &SubmitError{BillID: snap.BillID, Err: err}
	}

	updated, err := f.store.Bills().Update(ctx, store.UpdateRequest{Data: bill, Selector: snap.BillID})
	if err != nil {
		f.logger.Error("Bill submit failed",
			log.FieldBillID, snap.BillID,
			log.FieldError, err)
		if f.rules.NavigateOnError {
			f.navigate()
		}
		return core.Bill{}, &SubmitError{BillID: snap.BillID, Err: err}
	}

	f.logger.Info("Bill submitted",
		log.FieldBillID, snap.BillID,
		log.FieldAmount, bill.Amount.String())
	f.navigate()
	return updated, nil
}

func (f *Form) navigate() {
	if f.navigator != nil {
		f.navigator.Navigate(routes.Bills)
	}
}

// buildBill assembles the bill from the form fields. Amount and pct are
// lenient: an empty amount is sent as zero and an empty pct as DefaultPct,
// leaving validation to the bills resource.
func (f *Form) buildBill(v FormValues, snap DraftSnapshot) (core.Bill, error) {
	bill := core.Bill{
		ID:         snap.BillID,
		Email:      f.session.Email,
		Type:       core.ExpenseType(strings.TrimSpace(v.Type)),
		Name:       strings.TrimSpace(v.Name),
		VAT:        strings.TrimSpace(v.VAT),
		Pct:        core.DefaultPct,
		Commentary: v.Commentary,
		FileURL:    snap.FileURL,
		FileName:   snap.FileName,
		Status:     core.StatusPending,
	}

	if amount := strings.TrimSpace(v.Amount); amount != "" {
		cents, err := core.ParseDecimalToCents(amount)
		if err != nil {
			return core.Bill{}, fmt.Errorf("amount %q: %w", amount, err)
		}
		bill.Amount = core.Money{Cents: cents}
	}

	date, err := core.ParseDate(v.Date)
	if err != nil {
		return core.Bill{}, err
	}
	bill.Date = date

	if pct := strings.TrimSpace(v.Pct); pct != "" {
		n, err := strconv.Atoi(pct)
		if err != nil {
			return core.Bill{}, fmt.Errorf("pct %q: %w", pct, core.ErrInvalidPct)
		}
		bill.Pct = n
	}
	return bill, nil
}

func (f *Form) allowed(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return false
	}
	ext := strings.ToLower(name[i+1:])
	for _, a := range f.rules.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}

// baseName strips any directory prefix, with either separator.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return strings.TrimSpace(p)
}
