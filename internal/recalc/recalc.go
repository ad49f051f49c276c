// Package recalc derives item and sale totals from recorded facts. The event
// replay and the sale fold produce the same numbers for the same sales; the
// Engine adds repository access and a write-invalidated cache on top.
package recalc

import (
	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
	"github.com/jayhereforshort/haulharbor/internal/sales"
)

type itemSums struct {
	gross, refunds, fees, taxes, shipping, adjustments, cost, basis decimal.Decimal

	basisEvent *domain.MoneyEvent
}

// setBasis keeps the latest cost basis event; IDs are time-ordered and break
// ties between events stamped in the same instant.
func (s *itemSums) setBasis(e *domain.MoneyEvent) {
	if latest := s.basisEvent; latest != nil {
		if e.CreatedAt.Before(latest.CreatedAt) || (e.CreatedAt.Equal(latest.CreatedAt) && e.ID < latest.ID) {
			return
		}
	}
	s.basisEvent = e
	s.basis = ledger.Magnitude(*e)
}

func (s itemSums) totals(itemID string) domain.ItemTotals {
	net := s.gross.Sub(s.refunds).Sub(s.fees).Sub(s.taxes).Sub(s.shipping).Add(s.adjustments)
	profit := net.Sub(s.cost)
	return domain.ItemTotals{
		ItemID:      itemID,
		Gross:       s.gross,
		Refunds:     s.refunds,
		Fees:        s.fees,
		Taxes:       s.taxes,
		Shipping:    s.shipping,
		Adjustments: s.adjustments,
		Net:         net,
		Cost:        s.cost,
		CostBasis:   s.basis,
		Profit:      profit,
		ROI:         domain.Percent(profit, s.cost),
	}
}

// ItemFromEvents replays the item's events. Shared sale-level charges of
// multi-line sales are not attributed to any item. Cost basis is the latest
// COST_BASIS_SET amount, not a sum.
func ItemFromEvents(itemID string, events []domain.MoneyEvent) domain.ItemTotals {
	var s itemSums
	for i := range events {
		e := events[i]
		if e.InventoryItemID != itemID || e.Source == ledger.SourceSaleShared {
			continue
		}
		bucket, ok := ledger.BucketOf(e.EventType)
		if !ok {
			continue
		}
		amount := ledger.Magnitude(e)
		switch bucket {
		case ledger.BucketRevenue:
			s.gross = s.gross.Add(amount)
		case ledger.BucketRefund:
			s.refunds = s.refunds.Add(amount)
		case ledger.BucketFee:
			s.fees = s.fees.Add(amount)
		case ledger.BucketTax:
			s.taxes = s.taxes.Add(amount)
		case ledger.BucketShipping:
			s.shipping = s.shipping.Add(amount)
		case ledger.BucketCost:
			s.cost = s.cost.Add(amount)
		case ledger.BucketAdjustment:
			s.adjustments = s.adjustments.Add(amount)
		case ledger.BucketCostBasis:
			s.setBasis(&events[i])
		}
	}
	return s.totals(itemID)
}

// ItemFromSales folds the item's sale lines through the sale aggregator.
func ItemFromSales(itemID string, saleList []domain.Sale) domain.ItemTotals {
	var s itemSums
	for _, sale := range saleList {
		for i, line := range sale.Lines {
			if line.InventoryItemID != itemID {
				continue
			}
			share := sales.LineShare(sale, i)
			s.gross = s.gross.Add(share.Gross)
			s.fees = s.fees.Add(share.Fees)
			s.taxes = s.taxes.Add(share.Taxes)
			s.shipping = s.shipping.Add(share.Shipping)
			s.cost = s.cost.Add(share.Cost)
		}
	}
	return s.totals(itemID)
}

// SaleFromEvents replays a sale's events. Line-level charges are excluded
// because they never enter the sale's net.
func SaleFromEvents(saleID string, events []domain.MoneyEvent) domain.SaleTotals {
	gross, fees, taxes, shipping, cost, other := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, e := range events {
		if e.SaleID == nil || *e.SaleID != saleID {
			continue
		}
		bucket, ok := ledger.BucketOf(e.EventType)
		if !ok {
			continue
		}
		amount := ledger.Magnitude(e)
		lineCharge := e.Source == ledger.SourceSaleLine
		switch bucket {
		case ledger.BucketRevenue:
			gross = gross.Add(amount)
		case ledger.BucketCost:
			cost = cost.Add(amount)
		case ledger.BucketFee:
			if !lineCharge {
				fees = fees.Add(amount)
			}
		case ledger.BucketTax:
			if !lineCharge {
				taxes = taxes.Add(amount)
			}
		case ledger.BucketShipping:
			if !lineCharge {
				shipping = shipping.Add(amount)
			}
		case ledger.BucketRefund, ledger.BucketAdjustment:
			other = other.Add(ledger.Contribution(e))
		}
	}

	net := sales.Net(gross, fees, taxes, shipping).Add(other)
	profit := net.Sub(cost)
	return domain.SaleTotals{
		SaleID:   saleID,
		Gross:    gross,
		Fees:     fees,
		Taxes:    taxes,
		Shipping: shipping,
		Net:      net,
		Cost:     cost,
		Profit:   profit,
		Margin:   sales.Margin(profit, net),
	}
}

// SaleFromRecord is the sale aggregator's view of the same totals.
func SaleFromRecord(sale domain.Sale) domain.SaleTotals {
	return sales.Summarize(sale)
}
