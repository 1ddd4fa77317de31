// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point with two fraction digits. They are stored as
// integer cents so that sums can be computed exactly by the database, and
// converted through shopspring/decimal at the JSON boundary.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	moneyFractionDigits = 2
	moneyMaxDigits      = 10

	// maxMoneyInput caps the textual form accepted by ParseMoney.
	maxMoneyInput = 64

	// Exponents outside this window cannot describe a valid amount, and
	// rescaling to them would allocate huge powers of ten.
	minMoneyExponent = -(moneyFractionDigits + moneyMaxDigits)
	maxMoneyExponent = moneyMaxDigits
)

// maxMoney is the first value that no longer fits in ten digits.
var maxMoney = decimal.New(1, moneyMaxDigits-moneyFractionDigits)

// maxCents bounds the cents representation of a ten-digit amount.
const maxCents = 9_999_999_999

var (
	errMoneyInvalid   = NewValidationError("amount", "A valid number is required.")
	errMoneyPrecision = NewValidationError("amount", "Ensure that there are no more than 2 decimal places.")
	errMoneyDigits    = NewValidationError("amount", "Ensure that there are no more than 10 digits in total.")
)

// Money is an amount expressed in cents.
type Money struct {
	Cents int64
}

// ParseMoney converts a decimal string ("12", "12.3", "12.34") to Money.
//
// Values with more than two fraction digits or more than ten digits in
// total are rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxMoneyInput {
		return Money{}, errMoneyInvalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errMoneyInvalid
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts d to Money, enforcing the precision limits.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	switch exp := d.Exponent(); {
	case exp < minMoneyExponent:
		return Money{}, errMoneyPrecision
	case exp > maxMoneyExponent:
		return Money{}, errMoneyDigits
	}
	if !d.Equal(d.Round(moneyFractionDigits)) {
		return Money{}, errMoneyPrecision
	}
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return Money{}, errMoneyDigits
	}
	return Money{Cents: d.Shift(moneyFractionDigits).IntPart()}, nil
}

// Validate enforces the ten-digit limit on amounts built outside ParseMoney.
// Zero and negative amounts are allowed.
func (m Money) Validate() error {
	if m.Cents > maxCents || m.Cents < -maxCents {
		return errMoneyDigits
	}
	return nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -moneyFractionDigits)
}

// String formats the amount with exactly two fraction digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(moneyFractionDigits)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// MarshalJSON renders the amount as a JSON number such as 100.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	parsed, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
