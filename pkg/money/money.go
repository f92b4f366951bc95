// Package money provides locale-aware parsing and formatting of statement
// amounts together with currency-safe accumulation in minor units.
//
// Vendor statements use "." as the thousands separator and "," as the decimal
// separator (1.234,56). Canonical output drops the thousands separator and
// keeps the decimal comma with exactly two places (-1234,56).
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency codes seen on vendor statements (ISO-4217).
const (
	UYU = "UYU" // Uruguayan Peso, default for statements
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
)

// ErrEmptyAmount is returned when there is nothing left to parse after cleanup.
var ErrEmptyAmount = errors.New("empty amount")

var currencySymbols = []string{"US$", "U$S", "$U", "$", "€"}

// ParseLocale parses an amount written with "." thousands and "," decimals.
// "1.234,56" -> 1234.56, "-80,00" -> -80.
func ParseLocale(amount string) (decimal.Decimal, error) {
	return parse(amount, true)
}

// ParseUS parses an amount written with "," thousands and "." decimals.
// "1,234.56" -> 1234.56.
func ParseUS(amount string) (decimal.Decimal, error) {
	return parse(amount, false)
}

func parse(amount string, locale bool) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, " ", "")
	for _, sym := range currencySymbols {
		amount = strings.ReplaceAll(amount, sym, "")
	}

	if locale {
		amount = strings.ReplaceAll(amount, ".", "")
		amount = strings.ReplaceAll(amount, ",", ".")
	} else {
		amount = strings.ReplaceAll(amount, ",", "")
	}

	if amount == "" || amount == "-" {
		return decimal.Zero, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %w", err)
	}
	return d, nil
}

// FormatLocale renders d with two decimal places, a decimal comma and no
// thousands separator. Negative values carry a leading "-".
func FormatLocale(d decimal.Decimal) string {
	rounded := d.Round(2)
	text := strings.Replace(rounded.Abs().StringFixed(2), ".", ",", 1)
	if rounded.IsNegative() {
		return "-" + text
	}
	return text
}

// Money is a monetary value held in minor units of its currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units (cents).
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal, rounding to the currency's
// minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currencyCode = UYU
		currency = money.GetCurrency(UYU)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currencyCode)
}

// NewFromString parses a locale (europeanFormat) or US formatted amount.
func NewFromString(amount string, currencyCode string, europeanFormat bool) (*Money, error) {
	d, err := parse(amount, europeanFormat)
	if err != nil {
		return nil, err
	}
	return NewFromDecimal(d, currencyCode), nil
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsNegative reports whether the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// MustAdd adds two Money values, panics if currencies don't match.
func (m *Money) MustAdd(other *Money) *Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// ToDecimal converts to decimal.Decimal.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

// String returns the locale rendering, e.g. "-1234,56".
func (m *Money) String() string {
	return FormatLocale(m.ToDecimal())
}

// Sum adds decimals in minor units of currencyCode and returns the total.
func Sum(currencyCode string, values ...decimal.Decimal) decimal.Decimal {
	total := Zero(currencyCode)
	for _, v := range values {
		total = total.MustAdd(NewFromDecimal(v, currencyCode))
	}
	return total.ToDecimal()
}
