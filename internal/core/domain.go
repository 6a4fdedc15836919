package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind classifies a transaction. The set is closed: income or expense.
	Kind string

	// Date is a calendar date with day precision, always UTC.
	Date struct {
		time.Time
	}

	// Transaction is a single financial event owned by exactly one user.
	// ID, OwnerID and CreatedAt are fixed at creation and never change.
	Transaction struct {
		ID         string    `json:"id"`
		OwnerID    string    `json:"ownerId"`
		Title      string    `json:"title"`
		Amount     Money     `json:"amount"`
		Kind       Kind      `json:"kind"`
		Category   string    `json:"category,omitempty"`
		OccurredAt Date      `json:"date"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// User carries the credential-service fields. The ledger core only ever
	// looks at the ID.
	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Session maps an opaque bearer token to a user until it expires.
	Session struct {
		Token     string
		UserID    string
		ExpiresAt time.Time
	}
)

// ErrValidation is the parent of every caller-fixable input error. Handlers
// match it with errors.Is to pick the 400 status.
var (
	ErrValidation = errors.New("invalid input")

	ErrEmptyTitle    = fmt.Errorf("%w: title is required", ErrValidation)
	ErrTitleTooLong  = fmt.Errorf("%w: title too long (max 200 characters)", ErrValidation)
	ErrInvalidKind   = fmt.Errorf("%w: kind must be income or expense", ErrValidation)
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidID     = fmt.Errorf("%w: invalid transaction id", ErrValidation)

	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("record belongs to another user")
)

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Year returns the calendar year.
func (d Date) Year() int { return d.Time.Year() }

// Month returns the calendar month as 1-12.
func (d Date) Month() int { return int(d.Time.Month()) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthName returns the short English name ("Jan".."Dec") for a 1-12 month
// number, or the empty string outside that range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return time.Month(m).String()[:3]
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return ErrTitleTooLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.OccurredAt.Validate(); err != nil {
		return err
	}
	return nil
}
