package core

import "strings"

// FundRef says where a transaction's amount is posted: either one concrete
// fund, or across the split rule's target funds.
type FundRef struct {
	id    string
	split bool
}

// ConcreteFund references a single fund by id.
func ConcreteFund(id string) FundRef {
	return FundRef{id: strings.TrimSpace(id)}
}

// SplitAcrossTargets references the class split rule.
func SplitAcrossTargets() FundRef {
	return FundRef{split: true}
}

// ParseFundRef maps a persisted fund reference back to its variant. Only the
// exact sentinel selects the split variant; anything else is a concrete id,
// known to the class or not.
func ParseFundRef(s string) FundRef {
	s = strings.TrimSpace(s)
	if s == SplitSentinel {
		return SplitAcrossTargets()
	}
	return ConcreteFund(s)
}

func (r FundRef) IsSplit() bool {
	return r.split
}

// FundID returns the concrete fund id, or false for a split reference.
func (r FundRef) FundID() (string, bool) {
	if r.split {
		return "", false
	}
	return r.id, true
}

func (r FundRef) IsZero() bool {
	return !r.split && r.id == ""
}

func (r FundRef) String() string {
	if r.split {
		return SplitSentinel
	}
	return r.id
}

func (r FundRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *FundRef) UnmarshalText(b []byte) error {
	*r = ParseFundRef(string(b))
	return nil
}
