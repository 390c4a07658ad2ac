package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	CategoryDues     Category = "dues"
	CategoryDonation Category = "donation"
	CategorySupplies Category = "supplies"
	CategoryEvent    Category = "event"
	CategorySocial   Category = "social"
	CategoryOther    Category = "other"
)

// SplitSentinel is the persisted fund reference of a transaction that is
// allocated through the class split rule instead of a single fund.
const SplitSentinel = "gabungan"

const dateLayout = "2006-01-02"

type (
	TransactionType string

	Category string

	Date struct {
		time.Time
	}

	Fund struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Color  string `json:"color,omitempty"`
		IsMain bool   `json:"isMain"`
	}

	SplitRule struct {
		Enabled         bool            `json:"enabled"`
		TriggerCategory Category        `json:"category"`
		Ratio           decimal.Decimal `json:"ratio"`
		TargetFundIDs   []string        `json:"targetFundIds"`
	}

	SchoolClass struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		IsActive  bool      `json:"isActive"`
		Funds     []Fund    `json:"funds"`
		SplitRule SplitRule `json:"splitRule"`
		Students  []string  `json:"students"`
	}

	Transaction struct {
		ID            string          `json:"id"`
		ClassID       string          `json:"classId"`
		Date          Date            `json:"date"`
		PaymentDate   Date            `json:"paymentDate,omitzero"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Type          TransactionType `json:"type"`
		Fund          FundRef         `json:"fundId"`
		Category      Category        `json:"category"`
		RecordedBy    string          `json:"recordedBy"`
		StudentName   string          `json:"studentName,omitempty"`
		AttachmentURL string          `json:"attachmentUrl,omitempty"`
	}

	// InitialBalances maps a fund id to the cash on hand before the
	// transaction history of a class begins.
	InitialBalances map[string]decimal.Decimal
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrEmptyFund         = errors.New("empty fund reference")
	ErrUnknownFund       = errors.New("fund not defined for class")
	ErrEmptyClassID      = errors.New("empty class id")
	ErrEmptyClassName    = errors.New("empty class name")
	ErrDuplicateFund     = errors.New("duplicate fund id")
	ErrInvalidSplitRule  = errors.New("invalid split rule")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
)

var categoryLabels = map[Category]string{
	CategoryDues:     "Iuran Bulanan",
	CategoryDonation: "Sumbangan",
	CategorySupplies: "Perlengkapan",
	CategoryEvent:    "Kegiatan/Acara",
	CategorySocial:   "Sosial/Duka",
	CategoryOther:    "Lain-lain",
}

// AllCategories lists categories in display order.
func AllCategories() []Category {
	return []Category{CategoryDues, CategoryDonation, CategorySupplies, CategoryEvent, CategorySocial, CategoryOther}
}

// ParseCategory accepts either the category code or its display label.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for c, label := range categoryLabels {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, label) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human readable name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in YYYY-MM-DD form. RFC 3339 timestamps
// are accepted and truncated to their date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t.Year(), int(t.Month()), t.Day()), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
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

// AttributionDate is the date a dues payment is credited toward: the payment
// date when present, the transaction date otherwise.
func (t Transaction) AttributionDate() Date {
	if !t.PaymentDate.IsZero() {
		return t.PaymentDate
	}
	return t.Date
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLength
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if t.Fund.IsZero() {
		return ErrEmptyFund
	}
	return nil
}

// FundByID returns the fund with the given id.
func (c SchoolClass) FundByID(id string) (Fund, bool) {
	for _, f := range c.Funds {
		if f.ID == id {
			return f, true
		}
	}
	return Fund{}, false
}

// MainFund returns the fund flagged main, falling back to the first fund.
func (c SchoolClass) MainFund() (Fund, bool) {
	for _, f := range c.Funds {
		if f.IsMain {
			return f, true
		}
	}
	if len(c.Funds) > 0 {
		return c.Funds[0], true
	}
	return Fund{}, false
}

func (c SchoolClass) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyClassID
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyClassName
	}
	seen := make(map[string]struct{}, len(c.Funds))
	for _, f := range c.Funds {
		id := strings.TrimSpace(f.ID)
		if id == "" || id == SplitSentinel {
			return fmt.Errorf("%w: %q", ErrEmptyFund, f.ID)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateFund, id)
		}
		seen[id] = struct{}{}
	}
	return c.SplitRule.Validate()
}

// Validate only constrains enabled rules; a disabled rule may keep stale values.
func (r SplitRule) Validate() error {
	if !r.Enabled {
		return nil
	}
	if !r.TriggerCategory.Valid() {
		return fmt.Errorf("%w: trigger category %q", ErrInvalidSplitRule, r.TriggerCategory)
	}
	if !r.Ratio.IsPositive() || r.Ratio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: ratio %s must be in (0,1)", ErrInvalidSplitRule, r.Ratio)
	}
	if len(r.TargetFundIDs) == 0 {
		return fmt.Errorf("%w: no target funds", ErrInvalidSplitRule)
	}
	return nil
}

// NewDefaultClass builds a class with the two standard funds and a 50/50
// dues split between them.
func NewDefaultClass(id, name string) SchoolClass {
	return SchoolClass{
		ID:       id,
		Name:     name,
		IsActive: true,
		Funds: []Fund{
			{ID: "anak", Name: "Kas Anak", Color: "sky", IsMain: true},
			{ID: "perpisahan", Name: "Kas Perpisahan", Color: "purple"},
		},
		SplitRule: SplitRule{
			Enabled:         true,
			TriggerCategory: CategoryDues,
			Ratio:           decimal.NewFromFloat(0.5),
			TargetFundIDs:   []string{"anak", "perpisahan"},
		},
		Students: []string{},
	}
}
