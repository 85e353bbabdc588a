/*
money.go - Fixed-point currency values

PURPOSE:
  All budget arithmetic runs on Money, a thin wrapper around decimal.Decimal
  normalized to two decimal places. Using decimals everywhere keeps the
  pending/reimbursed bookkeeping exact; there is no float64 in any balance
  calculation.

ROUNDING:
  Amounts are rounded half-up to cents at construction and after every
  proration. Intermediate sums of already-rounded values never need
  re-rounding.

SEE ALSO:
  - access.go: Prorate() is used for work-status scaling
  - reconcile.go, rollover.go: balance arithmetic
*/
package budget

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount, 2-decimal fixed point
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value).Round(2)}
}

func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d.Round(2)}, nil
}

func MustMoney(s string) Money {
	m, err := NewMoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money        { return Money{Value: m.Value.Neg()} }

// Double returns 2x the amount. Used for the overdraft capacity rule.
func (m Money) Double() Money { return Money{Value: m.Value.Mul(decimal.NewFromInt(2))} }

// Prorate scales the amount by percent/100, rounded half-up to cents.
func (m Money) Prorate(percent int) Money {
	factor := decimal.NewFromInt(int64(percent)).Div(decimal.NewFromInt(100))
	return Money{Value: m.Value.Mul(factor).Round(2)}
}

func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) IsPositive() bool         { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool       { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool    { return m.Value.LessThan(o.Value) }

func (m Money) String() string { return m.Value.StringFixed(2) }
