package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"kaskelas/internal/core"
	"kaskelas/internal/ports"

	_ "modernc.org/sqlite"
)

const (
	syncDone   = "synced"
	syncFailed = "error"
)

// SQLiteRepository is the durable backend. It implements ports.Repository
// and ports.SyncQueue.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ports.Repository = (*SQLiteRepository)(nil)
	_ ports.SyncQueue  = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Classes

const classColumns = `id, name, is_active, funds, split_rule, students`

func (r *SQLiteRepository) ListClasses(ctx context.Context) ([]core.SchoolClass, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+classColumns+` FROM classes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var out []core.SchoolClass
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetClass(ctx context.Context, id string) (core.SchoolClass, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = ?`, id)
	c, err := scanClass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SchoolClass{}, fmt.Errorf("class %q: %w", id, core.ErrNotFound)
	}
	return c, err
}

func (r *SQLiteRepository) SaveClass(ctx context.Context, c core.SchoolClass) error {
	funds, err := json.Marshal(c.Funds)
	if err != nil {
		return fmt.Errorf("encode funds: %w", err)
	}
	rule, err := json.Marshal(c.SplitRule)
	if err != nil {
		return fmt.Errorf("encode split rule: %w", err)
	}
	students := c.Students
	if students == nil {
		students = []string{}
	}
	roster, err := json.Marshal(students)
	if err != nil {
		return fmt.Errorf("encode students: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO classes (id, name, is_active, funds, split_rule, students)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_active = excluded.is_active,
			funds = excluded.funds,
			split_rule = excluded.split_rule,
			students = excluded.students,
			updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.Name, c.IsActive, string(funds), string(rule), string(roster))
	if err != nil {
		return fmt.Errorf("save class %q: %w", c.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClass(s scanner) (core.SchoolClass, error) {
	var (
		c                     core.SchoolClass
		funds, rule, students string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.IsActive, &funds, &rule, &students); err != nil {
		return core.SchoolClass{}, err
	}
	if err := json.Unmarshal([]byte(funds), &c.Funds); err != nil {
		return core.SchoolClass{}, fmt.Errorf("decode funds of %q: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(rule), &c.SplitRule); err != nil {
		return core.SchoolClass{}, fmt.Errorf("decode split rule of %q: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(students), &c.Students); err != nil {
		return core.SchoolClass{}, fmt.Errorf("decode students of %q: %w", c.ID, err)
	}
	return c, nil
}

// Transactions

const txColumns = `id, class_id, date, payment_date, description, amount, type, fund_ref,
	category, recorded_by, student_name, attachment_url`

func (r *SQLiteRepository) ListTransactions(ctx context.Context, classID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE class_id = ? ORDER BY date, created_at, rowid`, classID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, classID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE class_id = ? AND id = ?`, classID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	return t, err
}

func (r *SQLiteRepository) SaveTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	var paymentDate sql.NullString
	if !t.PaymentDate.IsZero() {
		paymentDate = sql.NullString{String: t.PaymentDate.String(), Valid: true}
	}

	var version int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			payment_date = excluded.payment_date,
			description = excluded.description,
			amount = excluded.amount,
			type = excluded.type,
			fund_ref = excluded.fund_ref,
			category = excluded.category,
			recorded_by = excluded.recorded_by,
			student_name = excluded.student_name,
			attachment_url = excluded.attachment_url,
			updated_at = CURRENT_TIMESTAMP,
			version = transactions.version + 1,
			sync_status = 'pending'
		WHERE transactions.class_id = excluded.class_id
		RETURNING version`,
		t.ID, t.ClassID, t.Date.String(), paymentDate, t.Description, t.Amount.String(),
		string(t.Type), t.Fund.String(), string(t.Category), t.RecordedBy, t.StudentName, t.AttachmentURL,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// The id exists under another class.
		return 0, fmt.Errorf("transaction %q: %w", t.ID, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("save transaction %q: %w", t.ID, err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"class_id", t.ClassID,
		"version", version)
	return version, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, classID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE class_id = ? AND id = ?`, classID, id)
	if err != nil {
		return fmt.Errorf("delete transaction %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	return nil
}

// scanTransaction reads txColumns, then any extra trailing columns into extra.
func scanTransaction(s scanner, extra ...any) (core.Transaction, error) {
	var (
		t                            core.Transaction
		date, amount, typ, fund, cat string
		paymentDate                  sql.NullString
	)
	dest := []any{&t.ID, &t.ClassID, &date, &paymentDate, &t.Description, &amount, &typ, &fund,
		&cat, &t.RecordedBy, &t.StudentName, &t.AttachmentURL}
	err := s.Scan(append(dest, extra...)...)
	if err != nil {
		return core.Transaction{}, err
	}

	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %q: %w", t.ID, err)
	}
	if paymentDate.Valid && paymentDate.String != "" {
		if t.PaymentDate, err = core.ParseDate(paymentDate.String); err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %q: %w", t.ID, err)
		}
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %q amount %q: %w", t.ID, amount, err)
	}
	t.Type = core.TransactionType(typ)
	t.Category = core.Category(cat)
	t.Fund = core.ParseFundRef(fund)
	return t, nil
}

// Initial balances

func (r *SQLiteRepository) GetInitialBalances(ctx context.Context, classID string) (core.InitialBalances, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fund_id, amount FROM initial_balances WHERE class_id = ?`, classID)
	if err != nil {
		return nil, fmt.Errorf("get initial balances: %w", err)
	}
	defer rows.Close()

	out := core.InitialBalances{}
	for rows.Next() {
		var fundID, amount string
		if err := rows.Scan(&fundID, &amount); err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("initial balance of %q: %w", fundID, err)
		}
		out[fundID] = v
	}
	return out, rows.Err()
}

// SetInitialBalances replaces every opening balance of the class.
func (r *SQLiteRepository) SetInitialBalances(ctx context.Context, classID string, b core.InitialBalances) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM initial_balances WHERE class_id = ?`, classID); err != nil {
		return fmt.Errorf("clear initial balances: %w", err)
	}
	for fundID, v := range b {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO initial_balances (class_id, fund_id, amount) VALUES (?, ?, ?)`,
			classID, fundID, v.String()); err != nil {
			return fmt.Errorf("insert initial balance %q: %w", fundID, err)
		}
	}
	return tx.Commit()
}

// Sync bookkeeping

func (r *SQLiteRepository) GetSyncRecord(ctx context.Context, id string) (ports.SyncRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+`, version FROM transactions WHERE id = ?`, id)

	var rec ports.SyncRecord
	t, err := scanTransaction(row, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.SyncRecord{}, fmt.Errorf("transaction %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return ports.SyncRecord{}, fmt.Errorf("get sync record: %w", err)
	}
	rec.Transaction = t
	return rec, nil
}

func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]ports.PendingSync, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, class_id, version, strftime('%Y-%m-%dT%H:%M:%SZ', created_at)
		FROM transactions
		WHERE sync_status IN ('pending', 'error')
		ORDER BY created_at, rowid
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []ports.PendingSync
	for rows.Next() {
		var (
			p       ports.PendingSync
			created string
		)
		if err := rows.Scan(&p.ID, &p.ClassID, &p.Version, &created); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = ?, synced_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`, syncDone, id, version)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = ? WHERE id = ?`, syncFailed, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
