package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"kaskelas/internal/core"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type TransactionRequest struct {
	Date          string     `json:"date" validate:"required"`
	PaymentDate   string     `json:"paymentDate"`
	Description   string     `json:"description" validate:"required,max=200"`
	Amount        flexString `json:"amount" validate:"required"`
	Type          string     `json:"type" validate:"required"`
	FundID        string     `json:"fundId" validate:"max=64"`
	Category      string     `json:"category" validate:"required"`
	RecordedBy    string     `json:"recordedBy" validate:"max=100"`
	StudentName   string     `json:"studentName" validate:"max=100"`
	AttachmentURL string     `json:"attachmentUrl" validate:"omitempty,url,max=2048"`
}

// toTransaction parses the request into a draft. The id and class are set
// by the caller.
func (req TransactionRequest) toTransaction() (core.Transaction, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, &FieldError{Field: "date", Err: err}
	}
	var paymentDate core.Date
	if strings.TrimSpace(req.PaymentDate) != "" {
		if paymentDate, err = core.ParseDate(req.PaymentDate); err != nil {
			return core.Transaction{}, &FieldError{Field: "paymentDate", Err: err}
		}
	}
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Transaction{}, &FieldError{Field: "amount", Err: err}
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.Transaction{}, &FieldError{Field: "type", Err: err}
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.Transaction{}, &FieldError{Field: "category", Err: err}
	}

	return core.Transaction{
		Date:          date,
		PaymentDate:   paymentDate,
		Description:   sanitizeInput(req.Description),
		Amount:        amount,
		Type:          typ,
		Fund:          core.ParseFundRef(req.FundID),
		Category:      category,
		RecordedBy:    sanitizeInput(req.RecordedBy),
		StudentName:   sanitizeInput(req.StudentName),
		AttachmentURL: strings.TrimSpace(req.AttachmentURL),
	}, nil
}

type CreateClassRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type FundRequest struct {
	ID     string `json:"id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=100"`
	Color  string `json:"color" validate:"max=32"`
	IsMain bool   `json:"isMain"`
}

type SplitRuleRequest struct {
	Enabled       bool       `json:"enabled"`
	Category      string     `json:"category"`
	Ratio         flexString `json:"ratio"`
	TargetFundIDs []string   `json:"targetFundIds" validate:"dive,required"`
}

type UpdateClassRequest struct {
	Name      string           `json:"name" validate:"required,max=100"`
	IsActive  *bool            `json:"isActive"`
	Funds     []FundRequest    `json:"funds" validate:"required,min=1,dive"`
	SplitRule SplitRuleRequest `json:"splitRule"`
	Students  []string         `json:"students" validate:"dive,max=100"`
}

// toClass applies the request on top of the stored class. Consistency of
// funds and split rule is checked by SchoolClass.Validate.
func (req UpdateClassRequest) toClass(current core.SchoolClass) (core.SchoolClass, error) {
	c := current
	c.Name = sanitizeInput(req.Name)
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	c.Funds = make([]core.Fund, 0, len(req.Funds))
	for _, f := range req.Funds {
		c.Funds = append(c.Funds, core.Fund{
			ID:     strings.TrimSpace(f.ID),
			Name:   sanitizeInput(f.Name),
			Color:  strings.TrimSpace(f.Color),
			IsMain: f.IsMain,
		})
	}

	rule := core.SplitRule{Enabled: req.SplitRule.Enabled, Ratio: decimal.Zero}
	if s := strings.TrimSpace(req.SplitRule.Category); s != "" {
		cat, err := core.ParseCategory(s)
		if err != nil {
			return core.SchoolClass{}, &FieldError{Field: "splitRule.category", Err: err}
		}
		rule.TriggerCategory = cat
	}
	if s := strings.TrimSpace(string(req.SplitRule.Ratio)); s != "" {
		ratio, err := decimal.NewFromString(s)
		if err != nil {
			return core.SchoolClass{}, &FieldError{Field: "splitRule.ratio", Err: core.ErrInvalidSplitRule}
		}
		rule.Ratio = ratio
	}
	for _, id := range req.SplitRule.TargetFundIDs {
		rule.TargetFundIDs = append(rule.TargetFundIDs, strings.TrimSpace(id))
	}
	c.SplitRule = rule

	c.Students = make([]string, 0, len(req.Students))
	for _, s := range req.Students {
		if s = sanitizeInput(s); s != "" {
			c.Students = append(c.Students, s)
		}
	}
	return c, nil
}

// BalancesRequest maps fund id to opening balance.
type BalancesRequest map[string]flexString

func (req BalancesRequest) toBalances() (core.InitialBalances, error) {
	out := make(core.InitialBalances, len(req))
	for id, raw := range req {
		amount, err := parseBalance(string(raw))
		if err != nil {
			return nil, &FieldError{Field: id, Err: err}
		}
		out[strings.TrimSpace(id)] = amount
	}
	return out, nil
}

// parseBalance is ParseAmount that also admits zero.
func parseBalance(s string) (decimal.Decimal, error) {
	if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil && d.IsZero() {
		return decimal.Zero, nil
	}
	return core.ParseAmount(s)
}

type categoryResponse struct {
	Code  core.Category `json:"code"`
	Label string        `json:"label"`
}

type insightsResponse struct {
	ClassID string `json:"classId"`
	Text    string `json:"text"`
}
