package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/recalc"
	"github.com/jayhereforshort/haulharbor/internal/sales"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

var validChannels = map[string]bool{
	domain.ChannelEbay:      true,
	domain.ChannelOffline:   true,
	domain.ChannelWholesale: true,
}

var validSaleStatuses = map[string]bool{
	domain.SaleStatusPaid:          true,
	domain.SaleStatusPending:       true,
	domain.SaleStatusRefunded:      true,
	domain.SaleStatusCancelled:     true,
	domain.SaleStatusPartialRefund: true,
}

// CreateSale validates the request before anything is written, then commits
// the sale, its lines, the quantity effects and the money events as one unit
// under the account's sale-write lock.
func (s *Service) CreateSale(ctx context.Context, scope Scope, req domain.SaleCreateRequest) (domain.SaleCreateResponse, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.SaleCreateResponse{}, err
	}
	sale, err := buildSale(scope.Account.ID, req)
	if err != nil {
		return domain.SaleCreateResponse{}, err
	}

	var created *domain.Sale
	err = s.withAccountLock(ctx, scope.Account.ID, func() error {
		var err error
		created, err = s.repo.CreateSale(ctx, sale)
		return err
	})
	if err != nil {
		return domain.SaleCreateResponse{}, err
	}
	s.engine.Invalidate(ctx, scope.Account.ID)

	totals := sales.Summarize(*created)
	s.audit(ctx, scope, "sale_create", "sale", created.ID,
		"lines", len(created.Lines), "net", totals.Net.String(), "profit", totals.Profit.String())
	return domain.SaleCreateResponse{OK: true, SaleID: created.ID}, nil
}

func (s *Service) DeleteSale(ctx context.Context, scope Scope, saleID string) error {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return err
	}
	err := s.withAccountLock(ctx, scope.Account.ID, func() error {
		return s.repo.DeleteSale(ctx, scope.Account.ID, saleID)
	})
	if err != nil {
		return err
	}
	s.engine.Invalidate(ctx, scope.Account.ID)
	s.audit(ctx, scope, "sale_delete", "sale", saleID)
	return nil
}

// ListSales returns every sale of the account with its totals, newest sale
// date first.
func (s *Service) ListSales(ctx context.Context, scope Scope) ([]domain.SaleDetail, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return nil, err
	}
	saleList, totals, err := s.engine.AccountSales(ctx, scope.Account.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SaleDetail, 0, len(saleList))
	for _, sale := range saleList {
		out = append(out, domain.SaleDetail{Sale: sale, Totals: totals[sale.ID]})
	}
	return out, nil
}

func (s *Service) GetSale(ctx context.Context, scope Scope, saleID string, mode recalc.Mode) (domain.SaleDetail, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.SaleDetail{}, err
	}
	sale, err := s.repo.GetSale(ctx, scope.Account.ID, saleID)
	if err != nil {
		return domain.SaleDetail{}, err
	}
	totals, err := s.engine.SaleTotals(ctx, scope.Account.ID, saleID, mode)
	if err != nil {
		return domain.SaleDetail{}, err
	}
	return domain.SaleDetail{Sale: *sale, Totals: totals}, nil
}

// ItemSaleHistory lists every sale line of the item, newest sale first.
func (s *Service) ItemSaleHistory(ctx context.Context, scope Scope, itemID string) ([]domain.ItemSaleHistoryEntry, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetItem(ctx, scope.Account.ID, itemID); err != nil {
		return nil, err
	}
	saleList, err := s.repo.ListSalesForItem(ctx, scope.Account.ID, itemID)
	if err != nil {
		return nil, err
	}

	history := make([]domain.ItemSaleHistoryEntry, 0, len(saleList))
	for _, sale := range saleList {
		for _, line := range sale.Lines {
			if line.InventoryItemID != itemID {
				continue
			}
			history = append(history, domain.ItemSaleHistoryEntry{
				SaleID:    sale.ID,
				SaleDate:  sale.SaleDate,
				Channel:   sale.Channel,
				Status:    sale.Status,
				QtySold:   line.QtySold,
				UnitPrice: line.UnitPrice,
				LineTotal: sales.LineRevenue(line),
			})
		}
	}
	return history, nil
}

func buildSale(accountID string, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.LineItems) == 0 {
		return domain.Sale{}, store.Invalid("line_items", "Add at least one line item.")
	}
	channel := strings.ToUpper(strings.TrimSpace(req.Channel))
	if !validChannels[channel] {
		return domain.Sale{}, store.Invalid("channel", "must be EBAY, OFFLINE or WHOLESALE")
	}
	if _, err := time.Parse("2006-01-02", req.SaleDate); err != nil {
		return domain.Sale{}, store.Invalid("sale_date", "must be a YYYY-MM-DD date")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = domain.SaleStatusPaid
	}
	if !validSaleStatuses[status] {
		return domain.Sale{}, store.Invalid("status", "unknown sale status")
	}
	for field, v := range map[string]decimal.Decimal{"fees": req.Fees, "taxes": req.Taxes, "shipping": req.Shipping} {
		if err := money(field, &v); err != nil {
			return domain.Sale{}, err
		}
	}

	var buyer *string
	if req.Buyer != nil {
		if trimmed := strings.TrimSpace(*req.Buyer); trimmed != "" {
			buyer = &trimmed
		}
	}

	lines := make([]domain.SaleLineItem, 0, len(req.LineItems))
	for i, l := range req.LineItems {
		field := func(name string) string { return fmt.Sprintf("line_items[%d].%s", i, name) }
		if strings.TrimSpace(l.InventoryItemID) == "" {
			return domain.Sale{}, store.Invalid(field("inventory_item_id"), "is required")
		}
		if l.QtySold < 1 {
			return domain.Sale{}, store.Invalid(field("qty_sold"), "must be at least 1")
		}
		if !l.UnitPrice.IsPositive() {
			return domain.Sale{}, store.Invalid(field("unit_price"), "must be greater than 0")
		}
		if err := money(field("unit_price"), &l.UnitPrice); err != nil {
			return domain.Sale{}, err
		}
		if err := money(field("sold_unit_cost"), l.SoldUnitCost); err != nil {
			return domain.Sale{}, err
		}
		for name, v := range map[string]decimal.Decimal{"line_fees": l.LineFees, "line_taxes": l.LineTaxes, "line_shipping": l.LineShipping} {
			if err := money(field(name), &v); err != nil {
				return domain.Sale{}, err
			}
		}
		lines = append(lines, domain.SaleLineItem{
			InventoryItemID: strings.TrimSpace(l.InventoryItemID),
			QtySold:         l.QtySold,
			UnitPrice:       l.UnitPrice,
			SoldUnitCost:    l.SoldUnitCost,
			LineFees:        l.LineFees,
			LineTaxes:       l.LineTaxes,
			LineShipping:    l.LineShipping,
		})
	}

	return domain.Sale{
		AccountID: accountID,
		Channel:   channel,
		Buyer:     buyer,
		SaleDate:  req.SaleDate,
		Status:    status,
		Fees:      req.Fees,
		Taxes:     req.Taxes,
		Shipping:  req.Shipping,
		Lines:     lines,
	}, nil
}
