package sales

import (
	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
	"github.com/jayhereforshort/haulharbor/internal/xid"
)

// Events lists the money events recorded when sale is committed. Line facts
// use the line id as external id; sale-level charges use the sale id and are
// tied to the single line's item, or marked shared on multi-line sales.
func Events(sale domain.Sale) []domain.MoneyEvent {
	if len(sale.Lines) == 0 {
		return nil
	}

	events := make([]domain.MoneyEvent, 0, len(sale.Lines)*3+3)
	add := func(itemID string, source string, externalID string, eventType string, amount decimal.Decimal) {
		saleID := sale.ID
		ext := externalID
		channel := sale.Channel
		events = append(events, domain.MoneyEvent{
			ID:              xid.New(),
			AccountID:       sale.AccountID,
			InventoryItemID: itemID,
			SaleID:          &saleID,
			Channel:         &channel,
			EventType:       eventType,
			Amount:          amount,
			Source:          source,
			ExternalID:      &ext,
			CreatedAt:       sale.CreatedAt,
		})
	}

	for _, line := range sale.Lines {
		add(line.InventoryItemID, ledger.SourceSaleLine, line.ID, ledger.SoldRevenue, LineRevenue(line))
		if line.SoldUnitCost != nil {
			add(line.InventoryItemID, ledger.SourceSaleLine, line.ID, ledger.LotAllocatedCost, LineCost(line))
		}
		if !line.LineFees.IsZero() {
			add(line.InventoryItemID, ledger.SourceSaleLine, line.ID, ledger.Fee, line.LineFees)
		}
		if !line.LineTaxes.IsZero() {
			add(line.InventoryItemID, ledger.SourceSaleLine, line.ID, ledger.Tax, line.LineTaxes)
		}
		if !line.LineShipping.IsZero() {
			add(line.InventoryItemID, ledger.SourceSaleLine, line.ID, ledger.ShippingCost, line.LineShipping)
		}
	}

	source := ledger.SourceSaleShared
	if SharesSaleCharges(sale) {
		source = ledger.SourceSale
	}
	anchor := sale.Lines[0].InventoryItemID
	if !sale.Fees.IsZero() {
		add(anchor, source, sale.ID, ledger.Fee, sale.Fees)
	}
	if !sale.Taxes.IsZero() {
		add(anchor, source, sale.ID, ledger.Tax, sale.Taxes)
	}
	if !sale.Shipping.IsZero() {
		add(anchor, source, sale.ID, ledger.ShippingCost, sale.Shipping)
	}
	return events
}
