package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Bill struct {
	ID          string
	Email       string
	Type        string
	Name        string
	AmountCents int64
	Date        string
	VAT         string
	Pct         int64
	Commentary  string
	FileKey     string
	FileURL     string
	FileName    string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt sql.NullTime
	ExportedAt  sql.NullTime
}

type User struct {
	Email        string
	PasswordHash string
	Type         string
	CreatedAt    time.Time
}

const billColumns = `id, email, type, name, amount_cents, date, vat, pct, commentary,
	file_key, file_url, file_name, status, created_at, updated_at, submitted_at, exported_at`

func scanBill(row interface{ Scan(...any) error }) (Bill, error) {
	var b Bill
	err := row.Scan(
		&b.ID, &b.Email, &b.Type, &b.Name, &b.AmountCents, &b.Date, &b.VAT, &b.Pct, &b.Commentary,
		&b.FileKey, &b.FileURL, &b.FileName, &b.Status, &b.CreatedAt, &b.UpdatedAt, &b.SubmittedAt, &b.ExportedAt,
	)
	return b, err
}

type CreateBillParams struct {
	ID       string
	Email    string
	FileKey  string
	FileURL  string
	FileName string
}

const createBill = `INSERT INTO bills (id, email, file_key, file_url, file_name)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + billColumns

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	row := q.db.QueryRowContext(ctx, createBill, arg.ID, arg.Email, arg.FileKey, arg.FileURL, arg.FileName)
	return scanBill(row)
}

const getBill = `SELECT ` + billColumns + ` FROM bills WHERE id = ?`

func (q *Queries) GetBill(ctx context.Context, id string) (Bill, error) {
	return scanBill(q.db.QueryRowContext(ctx, getBill, id))
}

type UpdateBillParams struct {
	ID          string
	Type        string
	Name        string
	AmountCents int64
	Date        string
	VAT         string
	Pct         int64
	Commentary  string
	Status      string
	SubmittedAt time.Time
}

// updateBill leaves the receipt columns and owner untouched.
const updateBill = `UPDATE bills
SET type = ?, name = ?, amount_cents = ?, date = ?, vat = ?, pct = ?, commentary = ?,
    status = ?, submitted_at = ?, exported_at = NULL, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + billColumns

func (q *Queries) UpdateBill(ctx context.Context, arg UpdateBillParams) (Bill, error) {
	row := q.db.QueryRowContext(ctx, updateBill,
		arg.Type, arg.Name, arg.AmountCents, arg.Date, arg.VAT, arg.Pct, arg.Commentary,
		arg.Status, arg.SubmittedAt, arg.ID)
	return scanBill(row)
}

const listBills = `SELECT ` + billColumns + ` FROM bills ORDER BY created_at DESC, rowid DESC`

func (q *Queries) ListBills(ctx context.Context) ([]Bill, error) {
	return q.queryBills(ctx, listBills)
}

const listBillsByEmail = `SELECT ` + billColumns + ` FROM bills WHERE email = ? ORDER BY created_at DESC, rowid DESC`

func (q *Queries) ListBillsByEmail(ctx context.Context, email string) ([]Bill, error) {
	return q.queryBills(ctx, listBillsByEmail, email)
}

const getPendingExports = `SELECT ` + billColumns + ` FROM bills
WHERE submitted_at IS NOT NULL AND exported_at IS NULL
ORDER BY submitted_at
LIMIT ?`

func (q *Queries) GetPendingExports(ctx context.Context, limit int64) ([]Bill, error) {
	return q.queryBills(ctx, getPendingExports, limit)
}

const markBillExported = `UPDATE bills SET exported_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) MarkBillExported(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markBillExported, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) queryBills(ctx context.Context, query string, args ...any) ([]Bill, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type UpsertUserParams struct {
	Email        string
	PasswordHash string
	Type         string
}

const upsertUser = `INSERT INTO users (email, password_hash, type) VALUES (?, ?, ?)
ON CONFLICT(email) DO UPDATE SET password_hash = excluded.password_hash, type = excluded.type`

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) error {
	_, err := q.db.ExecContext(ctx, upsertUser, arg.Email, arg.PasswordHash, arg.Type)
	return err
}

const getUser = `SELECT email, password_hash, type, created_at FROM users WHERE email = ?`

func (q *Queries) GetUser(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUser, email).Scan(&u.Email, &u.PasswordHash, &u.Type, &u.CreatedAt)
	return u, err
}
