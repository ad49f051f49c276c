package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
	"github.com/jayhereforshort/haulharbor/internal/metrics"
	"github.com/jayhereforshort/haulharbor/internal/recalc"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

func (s *Service) ItemTotals(ctx context.Context, scope Scope, itemID string, modeRaw string) (domain.ItemTotals, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.ItemTotals{}, err
	}
	mode, ok := recalc.ParseMode(strings.TrimSpace(modeRaw))
	if !ok {
		return domain.ItemTotals{}, store.Invalid("mode", "must be events or sales")
	}
	if _, err := s.repo.GetItem(ctx, scope.Account.ID, itemID); err != nil {
		return domain.ItemTotals{}, err
	}
	return s.engine.ItemTotals(ctx, scope.Account.ID, itemID, mode)
}

// ListItemEvents returns the item's money events, newest first.
func (s *Service) ListItemEvents(ctx context.Context, scope Scope, itemID string) ([]domain.MoneyEvent, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetItem(ctx, scope.Account.ID, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMoneyEventsByItem(ctx, scope.Account.ID, itemID, ledger.NewestFirst)
}

// ImportMoneyEvents appends externally sourced events as one batch. Events
// whose idempotency key is already stored in the account count as
// duplicates. One rejected event rejects the whole batch.
func (s *Service) ImportMoneyEvents(ctx context.Context, scope Scope, req domain.MoneyEventImportRequest) (domain.MoneyEventImportResponse, error) {
	if err := s.require(scope, domain.RoleAdmin); err != nil {
		return domain.MoneyEventImportResponse{}, err
	}
	if len(req.Events) == 0 {
		return domain.MoneyEventImportResponse{}, store.Invalid("events", "at least one event is required")
	}

	events := make([]domain.MoneyEvent, 0, len(req.Events))
	for i, in := range req.Events {
		source := strings.TrimSpace(in.Source)
		if source == ledger.SourceSaleLine || source == ledger.SourceSale || source == ledger.SourceSaleShared {
			return domain.MoneyEventImportResponse{}, store.Invalid(fmt.Sprintf("events[%d].source", i), source+" is reserved for recorded sales")
		}
		event := domain.MoneyEvent{
			AccountID:       scope.Account.ID,
			InventoryItemID: strings.TrimSpace(in.InventoryItemID),
			SaleID:          in.SaleID,
			Channel:         in.Channel,
			EventType:       strings.ToUpper(strings.TrimSpace(in.EventType)),
			Amount:          in.Amount,
			Source:          source,
			ExternalID:      in.ExternalID,
			CreatedAt:       s.now(),
		}
		if err := ledger.Validate(event); err != nil {
			return domain.MoneyEventImportResponse{}, store.Invalid(fmt.Sprintf("events[%d]", i), err.Error())
		}
		events = append(events, event)
	}

	created, err := s.repo.RecordMoneyEvents(ctx, events)
	if err != nil {
		return domain.MoneyEventImportResponse{}, err
	}
	if created > 0 {
		s.engine.Invalidate(ctx, scope.Account.ID)
	}

	resp := domain.MoneyEventImportResponse{Created: created, Duplicates: len(events) - created}
	s.audit(ctx, scope, "money_event_import", "account", scope.Account.ID,
		"created", resp.Created, "duplicates", resp.Duplicates)
	return resp, nil
}

func (s *Service) Dashboard(ctx context.Context, scope Scope) (domain.DashboardMetrics, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.DashboardMetrics{}, err
	}
	saleList, totals, err := s.engine.AccountSales(ctx, scope.Account.ID)
	if err != nil {
		return domain.DashboardMetrics{}, err
	}
	items, err := s.repo.ListItems(ctx, scope.Account.ID, nil)
	if err != nil {
		return domain.DashboardMetrics{}, err
	}

	perSale := make([]domain.SaleTotals, 0, len(saleList))
	for _, sale := range saleList {
		if t, ok := totals[sale.ID]; ok {
			perSale = append(perSale, t)
		}
	}
	return metrics.Dashboard(s.now(), saleList, perSale, items), nil
}
