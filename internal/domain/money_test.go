package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCurrency(t *testing.T) {
	cases := map[string]string{
		"0":          "$0.00",
		"1234.5":     "$1,234.50",
		"-1234567.8": "-$1,234,567.80",
		"999.999":    "$1,000.00",
		"0.005":      "$0.01",
	}
	for in, want := range cases {
		v := decimal.RequireFromString(in)
		assert.Equal(t, want, FormatCurrency(&v), in)
	}
	assert.Equal(t, "—", FormatCurrency(nil))
}

func TestRoundMoneyHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "2.35", RoundMoney(decimal.RequireFromString("2.345")).String())
	assert.Equal(t, "-2.35", RoundMoney(decimal.RequireFromString("-2.345")).String())
}

func TestPercent(t *testing.T) {
	assert.Nil(t, Percent(decimal.NewFromInt(5), decimal.Zero))
	assert.Nil(t, Percent(decimal.NewFromInt(5), decimal.NewFromInt(-10)))

	pct := Percent(decimal.NewFromInt(25), decimal.NewFromInt(200))
	require.NotNil(t, pct)
	assert.True(t, pct.Equal(decimal.RequireFromString("12.5")))
}

func TestIsCents(t *testing.T) {
	assert.True(t, IsCents(decimal.RequireFromString("12.30")))
	assert.True(t, IsCents(decimal.RequireFromString("-4")))
	assert.False(t, IsCents(decimal.RequireFromString("0.005")))
}
