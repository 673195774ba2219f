// Package types provides the numeric value types used by the ledger.
package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a unit rate or an amount. Full precision, no floats.
type Money = decimal.Decimal

// ParseMoney parses a decimal string such as "12.50".
func ParseMoney(s string) (Money, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// MustMoney parses s and panics on error. Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Quantity is a fixed-point stock quantity with 4 decimal places.
// Stored as BIGINT (scaled) so balance arithmetic is exact integer math.
type Quantity int64

// QuantityScale is the number of scaled units in one whole unit.
const QuantityScale int64 = 10_000

// Units builds a Quantity from a whole number of units.
func Units(n int64) Quantity { return Quantity(n * QuantityScale) }

// NewQuantityFromDecimal rounds d to 4 places.
func NewQuantityFromDecimal(d decimal.Decimal) Quantity {
	return Quantity(d.Shift(4).Round(0).IntPart())
}

func (q Quantity) Int64Scaled() int64 { return int64(q) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

// Decimal returns the exact decimal value of q.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -4)
}

// Float64 is for display and metrics only.
func (q Quantity) Float64() float64 {
	return float64(q) / float64(QuantityScale)
}

// Amount returns q × rate.
func (q Quantity) Amount(rate Money) Money {
	return q.Decimal().Mul(rate)
}

// String renders q without trailing fractional zeros ("40", "2.5").
func (q Quantity) String() string {
	return q.Decimal().String()
}

// MarshalJSON encodes Quantity as a JSON number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted string.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Value stores the scaled integer in a BIGINT column.
func (q Quantity) Value() (driver.Value, error) {
	return int64(q), nil
}

// Scan reads a scaled BIGINT column.
func (q *Quantity) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*q = 0
	case int64:
		*q = Quantity(v)
	case int32:
		*q = Quantity(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan quantity: %w", err)
		}
		*q = Quantity(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("scan quantity: %w", err)
		}
		*q = Quantity(n)
	default:
		return fmt.Errorf("scan quantity: unsupported type %T", src)
	}
	return nil
}

// ParseQuantity parses a plain decimal string with an optional single
// sign. Digits beyond the fourth fractional place are rejected rather than
// truncated, and so is anything outside the Quantity range.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	raw := s
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intStr, fracStr, _ := strings.Cut(s, ".")
	if intStr == "" && fracStr == "" {
		return 0, fmt.Errorf("quantity %q has no digits", raw)
	}
	if !isDigits(intStr) || !isDigits(fracStr) {
		return 0, fmt.Errorf("quantity %q is not a decimal number", raw)
	}
	if len(fracStr) > 4 {
		return 0, fmt.Errorf("quantity %q has more than 4 decimal places", raw)
	}
	if intStr == "" {
		intStr = "0"
	}
	fracStr += strings.Repeat("0", 4-len(fracStr))

	whole, err := strconv.ParseInt(intStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is out of range", raw)
	}
	frac, _ := strconv.ParseInt(fracStr, 10, 64)
	if whole > (math.MaxInt64-frac)/QuantityScale {
		return 0, fmt.Errorf("quantity %q is out of range", raw)
	}

	q := Quantity(whole*QuantityScale + frac)
	if neg {
		q = -q
	}
	return q, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// AddChecked returns q + o and false when the sum overflows int64.
func (q Quantity) AddChecked(o Quantity) (Quantity, bool) {
	sum := q + o
	if (o > 0 && sum < q) || (o < 0 && sum > q) {
		return 0, false
	}
	return sum, true
}
