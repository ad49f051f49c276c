package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/entitlements"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

// AddMember adds username to the current account, creating the login when it
// does not exist yet. An existing user keeps their password.
func (s *Service) AddMember(ctx context.Context, scope Scope, req domain.MemberAddRequest) (domain.Membership, error) {
	if err := s.require(scope, domain.RoleAdmin); err != nil {
		return domain.Membership{}, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.Membership{}, store.Invalid("username", "must be at least 4 characters")
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleMember {
		return domain.Membership{}, store.Invalid("role", "must be admin or member")
	}

	count, err := s.repo.CountMembers(ctx, scope.Account.ID)
	if err != nil {
		return domain.Membership{}, err
	}
	if err := entitlements.Check(scope.Account.Plan, entitlements.MaxUsers, count); err != nil {
		return domain.Membership{}, err
	}

	exists, err := s.userExists(ctx, username)
	if err != nil {
		return domain.Membership{}, err
	}
	if !exists {
		if len(req.Password) < 8 {
			return domain.Membership{}, store.Invalid("password", "must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.Membership{}, err
		}
		if err := s.repo.CreateUser(ctx, domain.UserAccount{Username: username, Password: string(hash), Active: true}); err != nil {
			return domain.Membership{}, err
		}
	}

	membership := domain.Membership{
		AccountID: scope.Account.ID,
		Username:  username,
		Role:      req.Role,
		CreatedAt: s.now(),
	}
	if err := s.repo.AddMembership(ctx, membership); err != nil {
		return domain.Membership{}, err
	}
	s.audit(ctx, scope, "member_add", "membership", username, "role", req.Role, "new_user", !exists)
	return membership, nil
}

func (s *Service) userExists(ctx context.Context, username string) (bool, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}
