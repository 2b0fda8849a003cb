package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency is a supported settlement currency.
type Currency string

const (
	USD  Currency = "USD"
	USDC Currency = "USDC"
)

// Exponent returns the number of decimal places held by one minor unit.
func (c Currency) Exponent() int32 {
	switch c {
	case USDC:
		return 6
	default:
		return 2
	}
}

func (c Currency) Valid() bool {
	return c == USD || c == USDC
}

// ParseCurrency maps an external currency code onto the closed currency set.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", code)
	}
	return c, nil
}

var half = decimal.NewFromFloat(0.5)

// Money represents a monetary value in a specific currency.
// Amount is stored in integer minor units (cents for USD, micro units for USDC).
type Money struct {
	Amount   int64
	Currency Currency
}

// NewMoney creates a new Money instance from minor units.
func NewMoney(amount int64, currency Currency) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// Zero returns the zero value in the given currency.
func Zero(currency Currency) Money {
	return Money{Currency: currency}
}

// FromDecimal converts a major-unit decimal to Money, rounding half up to the nearest minor unit.
func FromDecimal(d decimal.Decimal, currency Currency) (Money, error) {
	minor := roundHalfUp(d.Shift(currency.Exponent()))
	if !fitsInt64(minor) {
		return Money{}, fmt.Errorf("%s %s: %w", d.String(), currency, ErrAmountOverflow)
	}
	return Money{Amount: minor.IntPart(), Currency: currency}, nil
}

// MustFromString is a convenience for constants and tests.
func MustFromString(s string, currency Currency) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	m, err := FromDecimal(d, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ToDecimal converts the minor units to a major-unit decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.New(m.Amount, -m.Currency.Exponent())
}

// Add returns a + b. Both operands must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	sum := m.Amount + other.Amount
	if (other.Amount > 0 && sum < m.Amount) || (other.Amount < 0 && sum > m.Amount) {
		return Money{}, ErrAmountOverflow
	}
	return Money{Amount: sum, Currency: m.Currency}, nil
}

// Subtract returns a - b. Both operands must share a currency.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.Amount == math.MinInt64 {
		return Money{}, ErrAmountOverflow
	}
	return m.Add(Money{Amount: -other.Amount, Currency: other.Currency})
}

// Multiply scales the amount by factor and rounds half up to the nearest minor unit.
func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	product := roundHalfUp(decimal.NewFromInt(m.Amount).Mul(factor))
	if !fitsInt64(product) {
		return Money{}, ErrAmountOverflow
	}
	return Money{Amount: product.IntPart(), Currency: m.Currency}, nil
}

// Compare returns -1, 0 or 1. Differing currencies are never comparable.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsNegative() bool { return m.Amount < 0 }
func (m Money) IsZero() bool     { return m.Amount == 0 }

var printer = message.NewPrinter(language.English)

// Format renders the amount with grouped thousands, e.g. "$1,200,000.00" or "12.500000 USDC".
func (m Money) Format() string {
	d := m.ToDecimal()
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(m.Currency.Exponent())
	whole, frac, _ := strings.Cut(fixed, ".")
	units, _ := decimal.NewFromString(whole)
	grouped := printer.Sprintf("%d", units.IntPart())
	if frac != "" {
		grouped += "." + frac
	}
	if m.Currency == USD {
		return sign + "$" + grouped
	}
	return fmt.Sprintf("%s%s %s", sign, grouped, m.Currency)
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(m.Currency.Exponent()), m.Currency)
}

type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.ToDecimal().StringFixed(m.Currency.Exponent()),
		Currency: m.Currency,
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	currency, err := ParseCurrency(string(raw.Currency))
	if err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	parsed, err := FromDecimal(d, currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%s vs %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return nil
}

// roundHalfUp rounds to an integer with ties going toward positive infinity.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

func fitsInt64(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(minInt64) && d.LessThanOrEqual(maxInt64)
}
