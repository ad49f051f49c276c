package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/entitlements"
	"github.com/jayhereforshort/haulharbor/internal/inventory"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

// ListItems returns the account's items. An empty status lists every item.
func (s *Service) ListItems(ctx context.Context, scope Scope, status string) ([]domain.InventoryItem, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return nil, err
	}
	var statuses []string
	if status = strings.TrimSpace(status); status != "" {
		if !inventory.IsValidStatus(status) {
			return nil, store.Invalid("status", "unknown status")
		}
		statuses = []string{status}
	}
	return s.repo.ListItems(ctx, scope.Account.ID, statuses)
}

func (s *Service) GetItem(ctx context.Context, scope Scope, itemID string) (domain.InventoryItem, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.InventoryItem{}, err
	}
	item, err := s.repo.GetItem(ctx, scope.Account.ID, itemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *item, nil
}

func (s *Service) CreateItem(ctx context.Context, scope Scope, req domain.ItemCreateRequest) (domain.InventoryItem, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.InventoryItem{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.InventoryItem{}, store.Invalid("title", "is required")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = domain.ItemStatusDraft
	}
	if !inventory.IsValidStatus(status) {
		return domain.InventoryItem{}, store.Invalid("status", "unknown status")
	}
	if req.QtyOnHand < 0 || req.QtyListed < 0 {
		return domain.InventoryItem{}, store.Invalid("qty_on_hand", "quantities must not be negative")
	}
	if err := money("unit_cost", req.UnitCost); err != nil {
		return domain.InventoryItem{}, err
	}
	if err := money("list_price", req.ListPrice); err != nil {
		return domain.InventoryItem{}, err
	}

	count, err := s.repo.CountItems(ctx, scope.Account.ID, nil)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if err := entitlements.Check(scope.Account.Plan, entitlements.MaxItems, count); err != nil {
		return domain.InventoryItem{}, err
	}
	if status == domain.ItemStatusListed {
		if err := s.checkListingLimit(ctx, scope); err != nil {
			return domain.InventoryItem{}, err
		}
	}

	item := domain.InventoryItem{
		AccountID:     scope.Account.ID,
		Title:         title,
		SKU:           strings.TrimSpace(req.SKU),
		Status:        status,
		QtyOnHand:     req.QtyOnHand,
		QtyListed:     min(req.QtyListed, req.QtyOnHand),
		UnitCost:      req.UnitCost,
		ListPrice:     req.ListPrice,
		ItemSpecifics: inventory.ParseItemSpecifics(req.ItemSpecifics),
		Tags:          inventory.ParseTags(req.Tags),
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.audit(ctx, scope, "item_create", "inventory_item", created.ID, "status", created.Status, "qty_on_hand", created.QtyOnHand)
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, scope Scope, itemID string, req domain.ItemUpdateRequest) (domain.InventoryItem, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.InventoryItem{}, err
	}
	existing, err := s.repo.GetItem(ctx, scope.Account.ID, itemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	updated := *existing
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.InventoryItem{}, store.Invalid("title", "is required")
		}
		updated.Title = title
	}
	if req.Status != nil {
		if !inventory.IsValidStatus(*req.Status) {
			return domain.InventoryItem{}, store.Invalid("status", "unknown status")
		}
		updated.Status = *req.Status
	}
	if req.QtyOnHand != nil {
		if *req.QtyOnHand < 0 {
			return domain.InventoryItem{}, store.Invalid("qty_on_hand", "must not be negative")
		}
		updated.QtyOnHand = *req.QtyOnHand
	}
	if req.QtyListed != nil {
		if *req.QtyListed < 0 {
			return domain.InventoryItem{}, store.Invalid("qty_listed", "must not be negative")
		}
		updated.QtyListed = *req.QtyListed
	}
	if req.UnitCost != nil {
		if err := money("unit_cost", req.UnitCost); err != nil {
			return domain.InventoryItem{}, err
		}
		updated.UnitCost = req.UnitCost
	}
	if req.ListPrice != nil {
		if err := money("list_price", req.ListPrice); err != nil {
			return domain.InventoryItem{}, err
		}
		updated.ListPrice = req.ListPrice
	}
	if req.Tags != nil {
		updated.Tags = inventory.ParseTags(*req.Tags)
	}
	updated.QtyListed = min(updated.QtyListed, inventory.Available(updated))

	if updated.Status == domain.ItemStatusListed && existing.Status != domain.ItemStatusListed {
		if err := s.checkListingLimit(ctx, scope); err != nil {
			return domain.InventoryItem{}, err
		}
	}

	saved, err := s.repo.UpdateItem(ctx, updated)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.audit(ctx, scope, "item_update", "inventory_item", saved.ID, "status", saved.Status)
	return *saved, nil
}

func (s *Service) AcquireStock(ctx context.Context, scope Scope, itemID string, req domain.AcquireRequest) (domain.InventoryItem, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.InventoryItem{}, err
	}
	if req.Qty < 1 {
		return domain.InventoryItem{}, store.Invalid("qty", "must be at least 1")
	}
	item, err := s.repo.AcquireStock(ctx, scope.Account.ID, itemID, req.Qty)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.audit(ctx, scope, "item_acquire", "inventory_item", item.ID, "qty", req.Qty, "qty_on_hand", item.QtyOnHand)
	return *item, nil
}

// SetCostBasis stores the unit cost on the item and records the basis of
// everything on hand as a COST_BASIS_SET event, both in one write.
func (s *Service) SetCostBasis(ctx context.Context, scope Scope, itemID string, req domain.CostBasisRequest) (domain.MoneyEvent, error) {
	if err := s.require(scope, domain.RoleMember); err != nil {
		return domain.MoneyEvent{}, err
	}
	unitCost := req.UnitCost
	if err := money("unit_cost", &unitCost); err != nil {
		return domain.MoneyEvent{}, err
	}

	item, event, err := s.repo.SetCostBasis(ctx, scope.Account.ID, itemID, unitCost, s.now())
	if err != nil {
		return domain.MoneyEvent{}, err
	}
	s.engine.Invalidate(ctx, scope.Account.ID)
	s.audit(ctx, scope, "cost_basis_set", "inventory_item", item.ID, "unit_cost", unitCost.String())
	return *event, nil
}

func (s *Service) checkListingLimit(ctx context.Context, scope Scope) error {
	listed, err := s.repo.CountItems(ctx, scope.Account.ID, []string{domain.ItemStatusListed})
	if err != nil {
		return err
	}
	return entitlements.Check(scope.Account.Plan, entitlements.MaxActiveListings, listed)
}

// money rejects negative amounts and amounts finer than a cent.
func money(field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if v.IsNegative() {
		return store.Invalid(field, "must not be negative")
	}
	if !domain.IsCents(*v) {
		return store.Invalid(field, "must not have more than 2 decimal places")
	}
	return nil
}
