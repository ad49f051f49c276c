package entitlements

import (
	"fmt"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

type Key string

const (
	MaxActiveListings  Key = "max_active_listings"
	MaxItems           Key = "max_items"
	MaxUsers           Key = "max_users"
	SyncFrequencyHours Key = "sync_frequency_hours"
)

// Unlimited marks a limit that never blocks.
const Unlimited = -1

type Plan struct {
	Name   string
	Limits map[Key]int
}

var plans = map[string]Plan{
	domain.PlanFree: {Name: "Free", Limits: map[Key]int{
		MaxActiveListings: 5, MaxItems: 100, MaxUsers: 1, SyncFrequencyHours: 24,
	}},
	domain.PlanStarter: {Name: "Starter", Limits: map[Key]int{
		MaxActiveListings: 25, MaxItems: 1000, MaxUsers: 3, SyncFrequencyHours: 12,
	}},
	domain.PlanPro: {Name: "Pro", Limits: map[Key]int{
		MaxActiveListings: 100, MaxItems: 10000, MaxUsers: 10, SyncFrequencyHours: 4,
	}},
	domain.PlanEnterprise: {Name: "Enterprise", Limits: map[Key]int{
		MaxActiveListings: Unlimited, MaxItems: Unlimited, MaxUsers: Unlimited, SyncFrequencyHours: 1,
	}},
}

// For returns the plan by id, falling back to the free plan.
func For(planID string) Plan {
	if p, ok := plans[planID]; ok {
		return p
	}
	return plans[domain.PlanFree]
}

func IsKnownPlan(planID string) bool {
	_, ok := plans[planID]
	return ok
}

func Limit(planID string, key Key) int {
	return For(planID).Limits[key]
}

// Check reports ErrEntitlement when adding one more unit would exceed the
// plan's limit for key.
func Check(planID string, key Key, current int) error {
	limit := Limit(planID, key)
	if limit == Unlimited || current < limit {
		return nil
	}
	return fmt.Errorf("%s limit of %d on %s plan: %w", key, limit, For(planID).Name, store.ErrEntitlement)
}
