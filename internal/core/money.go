// Package core provides amount parsing for the ledger.
//
// The ledger models whole currency units only. Amounts typed by a user must be
// a plain run of ASCII digits; amounts read back from a store are parsed more
// leniently because spreadsheet cells may carry surrounding whitespace or a sign.
package core

import (
	"strconv"
	"strings"
)

// ParseAmount converts a user supplied amount to an integer.
//
// Only ASCII digits are accepted: no sign, no decimal point, no thousands
// separators. Values that overflow int64 are rejected.
//
// Examples:
//
//	ParseAmount("895")   -> 895, nil
//	ParseAmount("0012")  -> 12, nil
//	ParseAmount("12.5")  -> 0, ErrInvalidAmount
//	ParseAmount("-3")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseStoredAmount parses an integer cell read back from a store.
// Surrounding whitespace and a leading sign are tolerated; anything else,
// including fractional values, is an error.
func ParseStoredAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
