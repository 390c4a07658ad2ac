// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing amounts typed by treasurers and
// for rendering decimal amounts as Rupiah strings.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount to a positive decimal.
//
// Indonesian notation is the default: dots group thousands and a comma marks
// decimals. A single dot followed by anything other than exactly three
// digits is read as a decimal point. An optional "Rp" prefix is ignored.
//
// Examples:
//
//	ParseAmount("50000")      -> 50000
//	ParseAmount("50.000")     -> 50000
//	ParseAmount("Rp 1.250,5") -> 1250.5
//	ParseAmount("12,5")       -> 12.5
//	ParseAmount("12.5")       -> 12.5
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[:2], "rp") {
		s = strings.TrimSpace(s[2:])
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Sign is carried by the transaction type
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	intPart, fracPart := s, ""
	if i := strings.LastIndex(s, ","); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		if strings.Contains(fracPart, ".") || strings.Contains(intPart, ",") {
			return decimal.Zero, ErrInvalidAmount
		}
		if !validGroups(intPart) {
			return decimal.Zero, ErrInvalidAmount
		}
		intPart = strings.ReplaceAll(intPart, ".", "")
	} else if n := strings.Count(s, "."); n == 1 {
		i := strings.Index(s, ".")
		if len(s)-i-1 == 3 && i > 0 {
			intPart = s[:i] + s[i+1:]
		} else {
			intPart, fracPart = s[:i], s[i+1:]
		}
	} else if n > 1 {
		if !validGroups(s) {
			return decimal.Zero, ErrInvalidAmount
		}
		intPart = strings.ReplaceAll(s, ".", "")
	}

	if intPart == "" {
		intPart = "0"
	}
	normalized := intPart
	if fracPart != "" {
		normalized += "." + fracPart
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// validGroups reports whether dot-separated groups look like thousands
// grouping: a leading group of 1-3 digits followed by groups of exactly 3.
func validGroups(s string) bool {
	if !strings.Contains(s, ".") {
		return true
	}
	groups := strings.Split(s, ".")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// FormatRupiah renders an amount for display ("Rp50.000", "-Rp1.250,50").
// Rounding happens here and nowhere in the ledger arithmetic.
func FormatRupiah(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs().Round(2)

	whole := d.Truncate(0)
	frac := d.Sub(whole).Shift(2).IntPart()

	digits := whole.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "Rp" + b.String()
	if frac != 0 {
		out += "," + twoDigits(frac)
	}
	if neg {
		return "-" + out
	}
	return out
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + string(rune('0'+n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
