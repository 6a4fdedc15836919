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

	"tally/internal/core"
	"tally/internal/query"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the record store behind the ledger: transactions,
// users, sessions and the audit log all live in one SQLite file.
type SQLiteRepository struct {
	db *sql.DB
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

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const timeLayout = time.RFC3339Nano

// listOrder keeps pagination stable: newest event date first, insertion
// order (rowid) breaking ties so records created later come first.
const listOrder = "ORDER BY occurred_at DESC, rowid DESC"

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, title, amount_cents, kind, category, occurred_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Title, t.Amount.Cents, string(t.Kind), t.Category,
		t.OccurredAt.String(), t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner_id", t.OwnerID,
		"kind", string(t.Kind),
		"amount_cents", t.Amount.Cents)

	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, amount_cents, kind, category, occurred_at, created_at, updated_at
		 FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET title = ?, amount_cents = ?, kind = ?, category = ?, occurred_at = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Amount.Cents, string(t.Kind), t.Category,
		t.OccurredAt.String(), t.UpdatedAt.UTC().Format(timeLayout), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context, f query.Filter) (int64, error) {
	where, args := f.Compile()

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f query.Filter, limit, offset int) ([]core.Transaction, error) {
	where, args := f.Compile()
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, title, amount_cents, kind, category, occurred_at, created_at, updated_at
		 FROM transactions WHERE `+where+" "+listOrder+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t                    core.Transaction
		kind                 string
		occurred             string
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Amount.Cents, &kind, &t.Category, &occurred, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Kind = core.Kind(kind)
	if t.OccurredAt, err = core.ParseDate(occurred); err != nil {
		return nil, fmt.Errorf("parse occurred_at %q: %w", occurred, err)
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return &t, nil
}

// MonthlySeries sums income and expense per (year, month) for records on or
// after since, ascending. Months without records are not synthesized.
func (r *SQLiteRepository) MonthlySeries(ctx context.Context, ownerID string, since core.Date) ([]core.MonthlyBucket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', occurred_at) AS INTEGER) AS y,
		        CAST(strftime('%m', occurred_at) AS INTEGER) AS m,
		        COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0)
		 FROM transactions
		 WHERE owner_id = ? AND occurred_at >= ?
		 GROUP BY y, m
		 ORDER BY y, m`, ownerID, since.String())
	if err != nil {
		return nil, fmt.Errorf("monthly series: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyBucket
	for rows.Next() {
		var b core.MonthlyBucket
		if err := rows.Scan(&b.Year, &b.Month, &b.Income.Cents, &b.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly bucket: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monthly series: %w", err)
	}
	return out, nil
}

// CategoryTotals sums all of the owner's records per literal category label
// (the empty label is its own group), largest first, category name breaking
// ties, truncated to limit groups.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, ownerID string, limit int) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) AS total
		 FROM transactions
		 WHERE owner_id = ?
		 GROUP BY category
		 ORDER BY total DESC, category ASC
		 LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	return collectCategoryTotals(rows)
}

// KindTotals returns the overall income and expense sums, zero when no
// record of a kind exists.
func (r *SQLiteRepository) KindTotals(ctx context.Context, ownerID string) (income, expense core.Money, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0)
		 FROM transactions WHERE owner_id = ?`, ownerID).Scan(&income.Cents, &expense.Cents)
	if err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("kind totals: %w", err)
	}
	return income, expense, nil
}

// MonthNameSeries buckets all of the owner's records by calendar-month
// number regardless of year, ascending Jan..Dec.
func (r *SQLiteRepository) MonthNameSeries(ctx context.Context, ownerID string) ([]core.MonthBucket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%m', occurred_at) AS INTEGER) AS m,
		        COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0)
		 FROM transactions
		 WHERE owner_id = ?
		 GROUP BY m
		 ORDER BY m`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("month name series: %w", err)
	}
	defer rows.Close()

	var out []core.MonthBucket
	for rows.Next() {
		var (
			b core.MonthBucket
			m int
		)
		if err := rows.Scan(&m, &b.Income.Cents, &b.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan month bucket: %w", err)
		}
		b.Month = core.MonthName(m)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("month name series: %w", err)
	}
	return out, nil
}

// ExpenseCategoryTotals sums expense records per category with absent
// categories coalesced to "Uncategorized" before grouping.
func (r *SQLiteRepository) ExpenseCategoryTotals(ctx context.Context, ownerID string) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CASE WHEN category = '' THEN 'Uncategorized' ELSE category END AS cat,
		        SUM(amount_cents) AS total
		 FROM transactions
		 WHERE owner_id = ? AND kind = 'expense'
		 GROUP BY cat
		 ORDER BY total DESC, cat ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("expense category totals: %w", err)
	}
	defer rows.Close()

	return collectCategoryTotals(rows)
}

func collectCategoryTotals(rows *sql.Rows) ([]core.CategoryTotal, error) {
	var out []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "email", u.Email)
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if u.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *core.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, s.ExpiresAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (*core.Session, error) {
	var (
		s       core.Session
		expires string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s.ExpiresAt, err = time.Parse(timeLayout, expires); err != nil {
		return nil, fmt.Errorf("parse session expires_at: %w", err)
	}
	return &s, nil
}

// DeleteExpiredSessions removes sessions past their expiry, returning how
// many were dropped.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, now.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

// AppendAuditEvent records one ledger mutation in the audit log.
func (r *SQLiteRepository) AppendAuditEvent(ctx context.Context, action, transactionID, ownerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, transaction_id, owner_id, recorded_at) VALUES (?, ?, ?, ?)`,
		action, transactionID, ownerID, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// AuditEventCount returns the number of recorded audit events for an owner.
func (r *SQLiteRepository) AuditEventCount(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("audit event count: %w", err)
	}
	return n, nil
}
