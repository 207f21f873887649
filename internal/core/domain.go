package core

import (
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

type (
	// Kind discriminates the two transaction collections. Identifiers are
	// only unique within a kind, never across kinds.
	Kind string

	Date struct {
		time.Time
	}

	// Money is a signed amount in cents. Expenses carry negative cents in
	// the merged ledger.
	Money struct {
		Cents int64
	}

	// User is the identity returned by the remote API on login. ID may be
	// zero when the backend has not assigned one yet.
	User struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	// Transaction is a single ledger record, already tagged with its kind
	// and carrying a signed amount.
	Transaction struct {
		ID          int64
		Kind        Kind
		Title       string
		Description string
		Amount      Money
		Date        Date
		Category    string
	}

	// TransactionInput holds the editable fields of a transaction as
	// submitted by a form. The amount is an unsigned magnitude; the sign is
	// decided by the kind at write time.
	TransactionInput struct {
		Title       string
		Description string
		Amount      Money
		Date        Date
		Category    string
	}

	// Key identifies a record in the merged ledger.
	Key struct {
		Kind Kind
		ID   int64
	}
)

// ValidationError reports a missing or malformed form field. It is detected
// locally, before any network call, and is distinct from transport errors.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

var (
	ErrEmptyTitle    = &ValidationError{Field: "title", Reason: "must not be empty"}
	ErrTitleTooLong  = &ValidationError{Field: "title", Reason: "too long (max 100 characters)"}
	ErrInvalidAmount = &ValidationError{Field: "amount", Reason: "must be a positive decimal"}
	ErrInvalidDate   = &ValidationError{Field: "date", Reason: "must be a valid calendar date"}
	ErrEmptyName     = &ValidationError{Field: "name", Reason: "must not be empty"}
	ErrInvalidEmail  = &ValidationError{Field: "email", Reason: "must contain @"}
	ErrEmptyPassword = &ValidationError{Field: "password", Reason: "must not be empty"}
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Signed applies the kind's sign convention to an unsigned magnitude:
// expenses become negative, incomes positive.
func (k Kind) Signed(m Money) Money {
	if k == KindExpense {
		return Money{Cents: -abs64(m.Cents)}
	}
	return Money{Cents: abs64(m.Cents)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ISO renders the date in YYYY-MM-DD form.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func (i TransactionInput) Validate() error {
	if len(strings.TrimSpace(i.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(i.Title) > 100 {
		return ErrTitleTooLong
	}
	if i.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if err := i.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// Key returns the (kind, id) pair that identifies t in the merged ledger.
func (t Transaction) Key() Key {
	return Key{Kind: t.Kind, ID: t.ID}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
