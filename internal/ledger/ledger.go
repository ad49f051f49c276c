// Package ledger defines money event types and the single place where each
// type's sign and bucket are decided.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
)

const (
	CostBasisSet     = "COST_BASIS_SET"
	LotAllocatedCost = "LOT_ALLOCATED_COST"
	SoldRevenue      = "SOLD_REVENUE"
	Fee              = "FEE"
	Tax              = "TAX"
	ShippingCost     = "SHIPPING_COST"
	ShippingRevenue  = "SHIPPING_REVENUE"
	Refund           = "REFUND"
	Adjustment       = "ADJUSTMENT"
)

// Sources written by sale creation. Sale-level charges use SourceSale when
// the sale has exactly one line and SourceSaleShared otherwise.
const (
	SourceSaleLine   = "sale_line"
	SourceSale       = "sale"
	SourceSaleShared = "sale_shared"
	SourceManual     = "manual"
)

type Bucket int

const (
	BucketRevenue Bucket = iota
	BucketRefund
	BucketFee
	BucketTax
	BucketShipping
	BucketCost
	BucketAdjustment
	BucketCostBasis
)

type rule struct {
	sign   int64
	bucket Bucket
}

var rules = map[string]rule{
	SoldRevenue:      {sign: 1, bucket: BucketRevenue},
	ShippingRevenue:  {sign: 1, bucket: BucketRevenue},
	Refund:           {sign: -1, bucket: BucketRefund},
	Fee:              {sign: -1, bucket: BucketFee},
	Tax:              {sign: -1, bucket: BucketTax},
	ShippingCost:     {sign: -1, bucket: BucketShipping},
	LotAllocatedCost: {sign: -1, bucket: BucketCost},
	Adjustment:       {sign: 1, bucket: BucketAdjustment},
	CostBasisSet:     {sign: -1, bucket: BucketCostBasis},
}

type Order int

const (
	Chronological Order = iota
	NewestFirst
)

func Types() []string {
	out := make([]string, 0, len(rules))
	for t := range rules {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func IsKnownType(eventType string) bool {
	_, ok := rules[eventType]
	return ok
}

// Sign is +1 for revenue and adjustments, -1 for everything that reduces profit.
func Sign(eventType string) int64 {
	return rules[eventType].sign
}

func BucketOf(eventType string) (Bucket, bool) {
	r, ok := rules[eventType]
	return r.bucket, ok
}

// Contribution is the signed effect of the event on profit.
func Contribution(e domain.MoneyEvent) decimal.Decimal {
	return e.Amount.Mul(decimal.NewFromInt(Sign(e.EventType)))
}

// Magnitude is the unsigned amount shown in a bucket column. Adjustments keep
// their sign.
func Magnitude(e domain.MoneyEvent) decimal.Decimal {
	if e.EventType == Adjustment {
		return e.Amount
	}
	return e.Amount.Abs()
}

// Key identifies an event for idempotency within its account. ok is false
// for events without an external id; those are never deduplicated.
func Key(e domain.MoneyEvent) (string, bool) {
	if e.ExternalID == nil || *e.ExternalID == "" {
		return "", false
	}
	return e.AccountID + "\x00" + e.Source + "\x00" + *e.ExternalID + "\x00" + e.EventType, true
}

// CostBasisEvent is the COST_BASIS_SET fact valuing everything on hand at
// unitCost. Only the newest one counts toward an item's cost basis.
func CostBasisEvent(item domain.InventoryItem, unitCost decimal.Decimal, at time.Time) domain.MoneyEvent {
	return domain.MoneyEvent{
		AccountID:       item.AccountID,
		InventoryItemID: item.ID,
		EventType:       CostBasisSet,
		Amount:          unitCost.Mul(decimal.NewFromInt(int64(item.QtyOnHand))),
		Source:          SourceManual,
		CreatedAt:       at,
	}
}

func Validate(e domain.MoneyEvent) error {
	switch {
	case strings.TrimSpace(e.AccountID) == "":
		return fmt.Errorf("account_id is required")
	case strings.TrimSpace(e.InventoryItemID) == "":
		return fmt.Errorf("inventory_item_id is required")
	case strings.TrimSpace(e.Source) == "":
		return fmt.Errorf("source is required")
	case !IsKnownType(e.EventType):
		return fmt.Errorf("unknown event_type %q", e.EventType)
	case e.EventType != Adjustment && e.Amount.IsNegative():
		return fmt.Errorf("amount must not be negative for %s", e.EventType)
	case !domain.IsCents(e.Amount):
		return fmt.Errorf("amount must not have more than 2 decimal places")
	}
	return nil
}

// SortEvents orders events by creation time, breaking ties on id so replay
// is deterministic.
func SortEvents(events []domain.MoneyEvent, order Order) {
	slices.SortStableFunc(events, func(a, b domain.MoneyEvent) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if order == NewestFirst {
			return -c
		}
		return c
	})
}
