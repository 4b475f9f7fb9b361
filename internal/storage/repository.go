package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"billed/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("not found")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// NewBill describes a receipt just stored for a future bill.
type NewBill struct {
	Email    string
	FileKey  string
	FileURL  string
	FileName string
}

// CreateBill inserts a pending bill for an uploaded receipt.
func (r *SQLiteRepository) CreateBill(ctx context.Context, nb NewBill) (core.Bill, error) {
	row, err := r.queries.CreateBill(ctx, CreateBillParams{
		ID:       uuid.NewString(),
		Email:    nb.Email,
		FileKey:  nb.FileKey,
		FileURL:  nb.FileURL,
		FileName: nb.FileName,
	})
	if err != nil {
		return core.Bill{}, fmt.Errorf("create bill: %w", err)
	}

	slog.InfoContext(ctx, "Bill saved to SQLite",
		"id", row.ID,
		"email", row.Email,
		"file_name", row.FileName)

	return toCore(row)
}

func (r *SQLiteRepository) GetBill(ctx context.Context, id string) (core.Bill, error) {
	row, err := r.queries.GetBill(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, fmt.Errorf("bill %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return toCore(row)
}

// IsExported reports whether the bill was exported since its last submit.
func (r *SQLiteRepository) IsExported(ctx context.Context, id string) (bool, error) {
	row, err := r.queries.GetBill(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("bill %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("get bill: %w", err)
	}
	return row.ExportedAt.Valid, nil
}

// SubmitBill stores the bill metadata and marks it submitted. Receipt and
// owner columns are never changed.
func (r *SQLiteRepository) SubmitBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	status := b.Status
	if status == "" {
		status = core.StatusPending
	}
	row, err := r.queries.UpdateBill(ctx, UpdateBillParams{
		ID:          b.ID,
		Type:        string(b.Type),
		Name:        b.Name,
		AmountCents: b.Amount.Cents,
		Date:        b.Date.String(),
		VAT:         b.VAT,
		Pct:         int64(b.Pct),
		Commentary:  b.Commentary,
		Status:      string(status),
		SubmittedAt: time.Now().UTC(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, fmt.Errorf("bill %s: %w", b.ID, ErrNotFound)
	}
	if err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}

	slog.InfoContext(ctx, "Bill submitted",
		"id", row.ID,
		"amount_cents", row.AmountCents,
		"status", row.Status)

	return toCore(row)
}

// ListBills returns the bills owned by email, or every bill when email is "".
func (r *SQLiteRepository) ListBills(ctx context.Context, email string) ([]core.Bill, error) {
	var (
		rows []Bill
		err  error
	)
	if email == "" {
		rows, err = r.queries.ListBills(ctx)
	} else {
		rows, err = r.queries.ListBillsByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return toCoreList(rows)
}

// PendingExports returns submitted bills not yet exported, oldest first.
func (r *SQLiteRepository) PendingExports(ctx context.Context, limit int) ([]core.Bill, error) {
	rows, err := r.queries.GetPendingExports(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	return toCoreList(rows)
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	n, err := r.queries.MarkBillExported(ctx, id)
	if err != nil {
		return fmt.Errorf("mark bill exported: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bill %s: %w", id, ErrNotFound)
	}
	slog.InfoContext(ctx, "Bill marked as exported", "id", id)
	return nil
}

// UserRecord is a stored account.
type UserRecord struct {
	Email        string
	PasswordHash string
	Type         core.UserType
}

func (r *SQLiteRepository) UpsertUser(ctx context.Context, u UserRecord) error {
	err := r.queries.UpsertUser(ctx, UpsertUserParams{
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Type:         string(u.Type),
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, email string) (UserRecord, error) {
	u, err := r.queries.GetUser(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	return UserRecord{Email: u.Email, PasswordHash: u.PasswordHash, Type: core.UserType(u.Type)}, nil
}

func toCore(b Bill) (core.Bill, error) {
	date, err := core.ParseDate(b.Date)
	if err != nil {
		return core.Bill{}, fmt.Errorf("bill %s: %w", b.ID, err)
	}
	return core.Bill{
		ID:         b.ID,
		Email:      b.Email,
		Type:       core.ExpenseType(b.Type),
		Name:       b.Name,
		Amount:     core.Money{Cents: b.AmountCents},
		Date:       date,
		VAT:        b.VAT,
		Pct:        int(b.Pct),
		Commentary: b.Commentary,
		FileURL:    b.FileURL,
		FileName:   b.FileName,
		Status:     core.Status(b.Status),
	}, nil
}

func toCoreList(rows []Bill) ([]core.Bill, error) {
	out := make([]core.Bill, 0, len(rows))
	for _, row := range rows {
		b, err := toCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
