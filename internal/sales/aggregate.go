// Package sales computes one sale's financial summary from its lines and
// sale-level charges, and derives the money events a sale records.
package sales

import (
	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
)

func Gross(lines []domain.SaleLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineRevenue(line))
	}
	return total
}

// Cost treats an unknown sold unit cost as zero.
func Cost(lines []domain.SaleLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineCost(line))
	}
	return total
}

func LineRevenue(line domain.SaleLineItem) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.QtySold)))
}

func LineCost(line domain.SaleLineItem) decimal.Decimal {
	if line.SoldUnitCost == nil {
		return decimal.Zero
	}
	return line.SoldUnitCost.Mul(decimal.NewFromInt(int64(line.QtySold)))
}

// Net subtracts the sale-level charges once. Line-level charges do not enter
// the sale total.
func Net(gross decimal.Decimal, fees decimal.Decimal, taxes decimal.Decimal, shipping decimal.Decimal) decimal.Decimal {
	return gross.Sub(fees).Sub(taxes).Sub(shipping)
}

// Margin is profit / net * 100, or nil when net is not positive.
func Margin(profit decimal.Decimal, net decimal.Decimal) *decimal.Decimal {
	return domain.Percent(profit, net)
}

func Summarize(sale domain.Sale) domain.SaleTotals {
	gross := Gross(sale.Lines)
	cost := Cost(sale.Lines)
	net := Net(gross, sale.Fees, sale.Taxes, sale.Shipping)
	profit := net.Sub(cost)
	return domain.SaleTotals{
		SaleID:   sale.ID,
		Gross:    gross,
		Fees:     sale.Fees,
		Taxes:    sale.Taxes,
		Shipping: sale.Shipping,
		Net:      net,
		Cost:     cost,
		Profit:   profit,
		Margin:   Margin(profit, net),
	}
}

// Share is one line's contribution to its item's figures.
type Share struct {
	Gross    decimal.Decimal
	Fees     decimal.Decimal
	Taxes    decimal.Decimal
	Shipping decimal.Decimal
	Cost     decimal.Decimal
}

// SharesSaleCharges reports whether sale-level fees, taxes and shipping are
// attributed to the sale's line. Only single-line sales qualify; multi-line
// sales are not apportioned.
func SharesSaleCharges(sale domain.Sale) bool {
	return len(sale.Lines) == 1
}

// LineShare returns line i's contribution. It always includes line-level
// charges and adds the sale-level charges only when SharesSaleCharges.
func LineShare(sale domain.Sale, i int) Share {
	line := sale.Lines[i]
	share := Share{
		Gross:    LineRevenue(line),
		Fees:     line.LineFees,
		Taxes:    line.LineTaxes,
		Shipping: line.LineShipping,
		Cost:     LineCost(line),
	}
	if SharesSaleCharges(sale) {
		share.Fees = share.Fees.Add(sale.Fees)
		share.Taxes = share.Taxes.Add(sale.Taxes)
		share.Shipping = share.Shipping.Add(sale.Shipping)
	}
	return share
}
