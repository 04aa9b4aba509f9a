package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 date-only layout used for every calendar day.
const DateLayout = "2006-01-02"

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

const (
	Borrowed BorrowType = "borrowed"
	Lent     BorrowType = "lent"

	Pending BorrowStatus = "pending"
	Settled BorrowStatus = "settled"
)

type (
	Period       string
	BorrowType   string
	BorrowStatus string

	Date struct {
		time.Time
	}

	Expense struct {
		ID        string    `json:"id"`
		Amount    Money     `json:"amount"`
		Category  string    `json:"category"`
		Note      string    `json:"note"`
		Date      Date      `json:"date"`
		CreatedAt time.Time `json:"createdAt"`
	}

	BudgetItem struct {
		Category string `json:"category"`
		Limit    Money  `json:"limit"` // zero means unset
	}

	TopUp struct {
		ID        string    `json:"id"`
		Amount    Money     `json:"amount"`
		Note      string    `json:"note"`
		Date      Date      `json:"date"`
		CreatedAt time.Time `json:"createdAt"`
	}

	BorrowRecord struct {
		ID          string       `json:"id"`
		Type        BorrowType   `json:"type"`
		PersonName  string       `json:"personName"`
		Amount      Money        `json:"amount"`
		Note        string       `json:"note"`
		Date        Date         `json:"date"`
		CreatedAt   time.Time    `json:"createdAt"`
		Status      BorrowStatus `json:"status"`
		SettledDate *Date        `json:"settledDate,omitempty"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyPerson       = errors.New("empty person name")
	ErrInvalidBorrowType = errors.New("invalid borrow type")
	ErrInvalidStatus     = errors.New("invalid borrow status")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrLimitExceeded     = errors.New("limit exceeded")
	ErrNotFound          = errors.New("not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day in the timestamp's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

// AddDays returns the date n calendar days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Between reports whether d lies in the inclusive range [start, end].
func (d Date) Between(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		*d = Date{Time: t}
		return nil
	}
	// Older payloads may carry a full timestamp.
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	*d = DateOf(t.UTC())
	return nil
}

func (p Period) Validate() error {
	switch p {
	case Daily, Weekly, Monthly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
	}
}

func (t BorrowType) Validate() error {
	switch t {
	case Borrowed, Lent:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBorrowType, string(t))
	}
}

func (s BorrowStatus) Validate() error {
	switch s {
	case Pending, Settled:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return e.Date.Validate()
}

func (b BudgetItem) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Limit.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (t TopUp) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return t.Date.Validate()
}

func (r BorrowRecord) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.PersonName) == "" {
		return ErrEmptyPerson
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	// A settled date is present exactly when the record is settled.
	if (r.Status == Settled) != (r.SettledDate != nil) {
		return fmt.Errorf("%w: %s record with settled date mismatch", ErrInvalidStatus, r.Status)
	}
	return r.Date.Validate()
}

// IsPending reports whether the record still counts toward outstanding balances.
func (r BorrowRecord) IsPending() bool {
	return r.Status == Pending
}
