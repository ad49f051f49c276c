package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), append([]any{"want %s got %s", want, got}, msgAndArgs...)...)
}

func TestSummarize(t *testing.T) {
	sale := domain.Sale{
		ID:       "s1",
		Fees:     d("5"),
		Taxes:    d("2.50"),
		Shipping: d("7.50"),
		Lines: []domain.SaleLineItem{
			{QtySold: 2, UnitPrice: d("40"), SoldUnitCost: dp("10"), LineFees: d("1")},
			{QtySold: 1, UnitPrice: d("20")},
		},
	}

	totals := Summarize(sale)
	assertDec(t, "100", totals.Gross)
	assertDec(t, "85", totals.Net, "line-level charges stay out of the sale net")
	assertDec(t, "20", totals.Cost, "unknown sold cost counts as zero")
	assertDec(t, "65", totals.Profit)
	require.NotNil(t, totals.Margin)
	assert.Equal(t, "76.47", domain.RoundMoney(*totals.Margin).StringFixed(2))
}

func TestMarginNilWhenNetNotPositive(t *testing.T) {
	sale := domain.Sale{
		Fees:  d("30"),
		Lines: []domain.SaleLineItem{{QtySold: 1, UnitPrice: d("30")}},
	}
	assert.Nil(t, Summarize(sale).Margin)
}

func TestLineShareSingleAndMulti(t *testing.T) {
	single := domain.Sale{
		Fees:  d("3"),
		Lines: []domain.SaleLineItem{{QtySold: 1, UnitPrice: d("10"), LineFees: d("1")}},
	}
	share := LineShare(single, 0)
	assertDec(t, "4", share.Fees)

	multi := single
	multi.Lines = append(multi.Lines, domain.SaleLineItem{QtySold: 1, UnitPrice: d("5")})
	assertDec(t, "1", LineShare(multi, 0).Fees)
	assertDec(t, "0", LineShare(multi, 1).Fees)
}

func TestEventsSingleLine(t *testing.T) {
	sale := domain.Sale{
		ID:        "sale-1",
		AccountID: "acct",
		Channel:   domain.ChannelEbay,
		Fees:      d("2"),
		Lines: []domain.SaleLineItem{{
			ID: "line-1", InventoryItemID: "item-1", QtySold: 2, UnitPrice: d("15"), SoldUnitCost: dp("4"),
			LineTaxes: d("0.50"),
		}},
	}

	events := Events(sale)
	require.Len(t, events, 4)

	byType := map[string]domain.MoneyEvent{}
	for _, e := range events {
		require.NoError(t, ledger.Validate(e))
		require.NotNil(t, e.SaleID)
		assert.Equal(t, "sale-1", *e.SaleID)
		assert.Equal(t, "item-1", e.InventoryItemID)
		byType[e.EventType] = e
	}
	assertDec(t, "30", byType[ledger.SoldRevenue].Amount)
	assertDec(t, "8", byType[ledger.LotAllocatedCost].Amount)
	assert.Equal(t, ledger.SourceSaleLine, byType[ledger.Tax].Source)
	assert.Equal(t, "line-1", *byType[ledger.Tax].ExternalID)
	assert.Equal(t, ledger.SourceSale, byType[ledger.Fee].Source)
	assert.Equal(t, "sale-1", *byType[ledger.Fee].ExternalID)
}

func TestEventsMultiLineMarksSharedCharges(t *testing.T) {
	sale := domain.Sale{
		ID:       "sale-2",
		Shipping: d("9"),
		Lines: []domain.SaleLineItem{
			{ID: "l1", InventoryItemID: "a", QtySold: 1, UnitPrice: d("10")},
			{ID: "l2", InventoryItemID: "b", QtySold: 1, UnitPrice: d("12")},
		},
	}

	events := Events(sale)
	require.Len(t, events, 3)
	shipping := events[2]
	assert.Equal(t, ledger.ShippingCost, shipping.EventType)
	assert.Equal(t, ledger.SourceSaleShared, shipping.Source)
	assert.Equal(t, "a", shipping.InventoryItemID, "anchored to the first line's item")

	seen := map[string]bool{}
	for _, e := range events {
		key, ok := ledger.Key(e)
		require.True(t, ok)
		assert.False(t, seen[key], "keys are unique within a sale")
		seen[key] = true
	}
}

func TestEventsEmptySale(t *testing.T) {
	assert.Nil(t, Events(domain.Sale{}))
}
