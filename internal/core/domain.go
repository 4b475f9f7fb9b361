package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

const (
	Employee UserType = "Employee"
	Admin    UserType = "Admin"
)

// Expense types offered by the NewBill form.
const (
	TypeTransports     ExpenseType = "Transports"
	TypeRestaurants    ExpenseType = "Restaurants et bars"
	TypeHotel          ExpenseType = "Hôtel et logement"
	TypeOnlineServices ExpenseType = "Services en ligne"
	TypeIT             ExpenseType = "IT et électronique"
	TypeEquipment      ExpenseType = "Equipement et matériel"
	TypeOfficeSupplies ExpenseType = "Fournitures de bureau"
)

const (
	// DefaultPct is applied when the form leaves the pct field empty.
	DefaultPct = 20

	maxCommentaryLength = 500
	maxNameLength       = 200
	dateLayout          = "2006-01-02"
)

type (
	Status      string
	UserType    string
	ExpenseType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Bill is an expense report submitted by an employee.
	Bill struct {
		ID         string      `json:"id"`
		Email      string      `json:"email"`
		Type       ExpenseType `json:"type"`
		Name       string      `json:"name"`
		Amount     Money       `json:"amount"`
		Date       Date        `json:"date"`
		VAT        string      `json:"vat"`
		Pct        int         `json:"pct"`
		Commentary string      `json:"commentary"`
		FileURL    string      `json:"fileUrl"`
		FileName   string      `json:"fileName"`
		Status     Status      `json:"status"`
	}

	// UploadResult is what the bills resource returns for a stored receipt.
	UploadResult struct {
		FileURL string `json:"fileUrl"`
		Key     string `json:"key"`
	}

	// Session is the identity of the logged-in user.
	Session struct {
		Email string   `json:"email"`
		Type  UserType `json:"type"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidType       = errors.New("invalid expense type")
	ErrInvalidPct        = errors.New("pct must be between 0 and 100")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyEmail        = errors.New("empty email")
	ErrCommentaryTooLong = errors.New("commentary too long (max 500 characters)")
	ErrMissingFile       = errors.New("bill has no receipt")
)

// ExpenseTypes lists the types in form order.
func ExpenseTypes() []ExpenseType {
	return []ExpenseType{
		TypeTransports,
		TypeRestaurants,
		TypeHotel,
		TypeOnlineServices,
		TypeIT,
		TypeEquipment,
		TypeOfficeSupplies,
	}
}

func (t ExpenseType) Valid() bool {
	for _, known := range ExpenseTypes() {
		if t == known {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRefused:
		return true
	}
	return false
}

func (u UserType) Valid() bool {
	return u == Employee || u == Admin
}

// IsAdmin reports whether the session may act on other users' bills.
func (s Session) IsAdmin() bool {
	return s.Type == Admin
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Draft reports whether the bill still lacks submitted metadata.
func (b Bill) Draft() bool {
	return strings.TrimSpace(b.Name) == "" && b.Amount.Cents == 0 && b.Date.IsZero()
}

// Validate checks a bill carrying submitted metadata.
func (b Bill) Validate() error {
	if strings.TrimSpace(b.Email) == "" {
		return ErrEmptyEmail
	}
	if !b.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if len(b.Name) > maxNameLength {
		return errors.New("name too long (max 200 characters)")
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := b.Date.Validate(); err != nil {
		return err
	}
	if b.Pct < 0 || b.Pct > 100 {
		return ErrInvalidPct
	}
	if len(b.Commentary) > maxCommentaryLength {
		return ErrCommentaryTooLong
	}
	if b.Status != "" && !b.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
