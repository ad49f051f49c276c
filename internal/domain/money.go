package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to cents. Intermediate sums keep full
// precision; call this only when presenting a value.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatCurrency renders an amount as US dollars, or an em dash when the
// amount is unknown.
func FormatCurrency(d *decimal.Decimal) string {
	if d == nil {
		return "—"
	}
	v := RoundMoney(*d)
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	fixed := v.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// Percent returns part / whole * 100, or nil when whole is not positive.
func Percent(part decimal.Decimal, whole decimal.Decimal) *decimal.Decimal {
	if !whole.IsPositive() {
		return nil
	}
	pct := part.Div(whole).Mul(hundred)
	return &pct
}

// IsCents reports whether d has no precision below a cent.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
