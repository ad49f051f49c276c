package inventory

import (
	"fmt"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

// Available is the quantity that can still be sold.
func Available(item domain.InventoryItem) int {
	return max(0, item.QtyOnHand-item.QtySold)
}

func Acquire(item *domain.InventoryItem, qty int) error {
	if qty < 1 {
		return store.Invalid("qty", "must be at least 1")
	}
	item.QtyOnHand += qty
	return nil
}

// Consumption is what a Sell changed besides qty_sold. Restore needs it to
// put the item back exactly.
type Consumption struct {
	Listed      int
	PriorStatus string
}

// Sell consumes qty from the item. The caller must hold whatever lock makes
// the check and the write atomic.
func Sell(item *domain.InventoryItem, qty int) (Consumption, error) {
	if qty < 1 {
		return Consumption{}, store.Invalid("qty_sold", "must be at least 1")
	}
	if Available(*item) < qty {
		return Consumption{}, fmt.Errorf("item %s has %d available, %d requested: %w", item.ID, Available(*item), qty, store.ErrInsufficientStock)
	}
	var c Consumption
	item.QtySold += qty
	if listed := min(item.QtyListed, Available(*item)); listed < item.QtyListed {
		c.Listed = item.QtyListed - listed
		item.QtyListed = listed
	}
	if Available(*item) == 0 && (item.Status == domain.ItemStatusListed || item.Status == domain.ItemStatusReady) {
		c.PriorStatus = item.Status
		item.Status = domain.ItemStatusSold
	}
	return c, nil
}

// Restore undoes a Sell of qty. qty and c must be the values recorded when
// the sale was committed.
func Restore(item *domain.InventoryItem, qty int, c Consumption) {
	item.QtySold = max(0, item.QtySold-qty)
	item.QtyListed = min(item.QtyListed+c.Listed, Available(*item))
	if c.PriorStatus != "" && item.Status == domain.ItemStatusSold && Available(*item) > 0 {
		item.Status = c.PriorStatus
	}
}

// Note stores c on the first line of lines selling itemID.
func Note(lines []domain.SaleLineItem, itemID string, c Consumption) {
	for i := range lines {
		if lines[i].InventoryItemID != itemID {
			continue
		}
		lines[i].ListedReleased = c.Listed
		lines[i].PriorStatus = nil
		if c.PriorStatus != "" {
			prior := c.PriorStatus
			lines[i].PriorStatus = &prior
		}
		return
	}
}

// Release is what deleting a sale gives back to one item.
type Release struct {
	Qty int
	Consumption
}

// Releases totals the quantities and recorded consumption per item.
func Releases(lines []domain.SaleLineItem) map[string]Release {
	out := make(map[string]Release, len(lines))
	for _, line := range lines {
		r := out[line.InventoryItemID]
		r.Qty += line.QtySold
		r.Listed += line.ListedReleased
		if line.PriorStatus != nil && r.PriorStatus == "" {
			r.PriorStatus = *line.PriorStatus
		}
		out[line.InventoryItemID] = r
	}
	return out
}

// Demand sums requested quantities per item so an item appearing on several
// lines is checked once against its total.
func Demand(lines []domain.SaleLineItem) map[string]int {
	demand := make(map[string]int, len(lines))
	for _, line := range lines {
		demand[line.InventoryItemID] += line.QtySold
	}
	return demand
}

func IsActiveStatus(status string) bool {
	switch status {
	case domain.ItemStatusDraft, domain.ItemStatusReady, domain.ItemStatusListed:
		return true
	}
	return false
}

func ActiveStatuses() []string {
	return []string{domain.ItemStatusDraft, domain.ItemStatusReady, domain.ItemStatusListed}
}

func IsValidStatus(status string) bool {
	return IsActiveStatus(status) || status == domain.ItemStatusSold || status == domain.ItemStatusArchived
}
