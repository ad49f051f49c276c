package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

func TestLimits(t *testing.T) {
	assert.Equal(t, 5, Limit(domain.PlanFree, MaxActiveListings))
	assert.Equal(t, 1000, Limit(domain.PlanStarter, MaxItems))
	assert.Equal(t, 10, Limit(domain.PlanPro, MaxUsers))
	assert.Equal(t, Unlimited, Limit(domain.PlanEnterprise, MaxItems))
	assert.Equal(t, 1, Limit(domain.PlanEnterprise, SyncFrequencyHours))
}

func TestUnknownPlanFallsBackToFree(t *testing.T) {
	assert.False(t, IsKnownPlan("platinum"))
	assert.Equal(t, "Free", For("platinum").Name)
	assert.Equal(t, 100, Limit("platinum", MaxItems))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(domain.PlanFree, MaxUsers, 0))
	assert.ErrorIs(t, Check(domain.PlanFree, MaxUsers, 1), store.ErrEntitlement)
	assert.ErrorIs(t, Check(domain.PlanStarter, MaxActiveListings, 30), store.ErrEntitlement)
	assert.NoError(t, Check(domain.PlanEnterprise, MaxItems, 1_000_000))
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(domain.RoleOwner, domain.RoleAdmin))
	assert.True(t, HasRole(domain.RoleAdmin, domain.RoleAdmin))
	assert.False(t, HasRole(domain.RoleMember, domain.RoleAdmin))
	assert.False(t, HasRole("guest", "guest"))
	assert.True(t, IsKnownRole(domain.RoleMember))
	assert.False(t, IsKnownRole("guest"))
}
