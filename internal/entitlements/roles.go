package entitlements

import "github.com/jayhereforshort/haulharbor/internal/domain"

var roleRank = map[string]int{
	domain.RoleOwner:  3,
	domain.RoleAdmin:  2,
	domain.RoleMember: 1,
}

// HasRole reports whether role is at least required. Unknown roles rank
// below member.
func HasRole(role string, required string) bool {
	return roleRank[role] >= roleRank[required] && roleRank[role] > 0
}

func IsKnownRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}
