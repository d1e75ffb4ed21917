// Package core provides money parsing and handling utilities.
//
// This file contains the Money type used for event amounts and running
// balances, and the parser for user-entered decimal amounts.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal monetary value. Amounts are non-negative; balances may
// go below zero.
type Money struct {
	decimal.Decimal
}

// Zero is the starting balance of every sequence.
var Zero = Money{Decimal: decimal.Zero}

// NewMoney builds a Money from an integer number of cents.
func NewMoney(cents int64) Money {
	return Money{Decimal: decimal.New(cents, -2)}
}

// MustMoney parses a decimal literal and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

// ParseAmount converts a user-entered amount to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects signs, exponents and anything that is not a plain decimal number.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, &ValidationError{Field: "amount", Reason: "missing amount", Err: ErrInvalidAmount}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "+-eE") {
		return Money{}, &ValidationError{Field: "amount", Reason: "amount must be a positive decimal", Err: ErrInvalidAmount}
	}
	if strings.Count(s, ".") > 1 {
		return Money{}, &ValidationError{Field: "amount", Reason: "malformed amount", Err: ErrInvalidAmount}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Reason: "malformed amount", Err: ErrInvalidAmount}
	}
	return Money{Decimal: d}, nil
}

// Validate checks that the value is usable as an event amount.
func (m Money) Validate() error {
	if m.Decimal.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "amount cannot be negative", Err: ErrInvalidAmount}
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

func (m Money) Neg() Money {
	return Money{Decimal: m.Decimal.Neg()}
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// String renders the value with two decimals, e.g. "-30.00".
func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

// Float returns the value as float64 for spreadsheet cells.
// Use Money arithmetic for calculations.
func (m Money) Float() float64 {
	f, _ := m.Decimal.Float64()
	return f
}
