package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jayhereforshort/haulharbor/internal/cache"
	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/entitlements"
	"github.com/jayhereforshort/haulharbor/internal/logger"
	"github.com/jayhereforshort/haulharbor/internal/recalc"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

// Scope is the account an operation acts on and who is acting in it. Every
// operation receives it explicitly.
type Scope struct {
	Account  domain.Account
	Username string
	Role     string
}

type Service struct {
	repo   store.Repository
	engine *recalc.Engine
	locker cache.AccountLocker
	now    func() time.Time
}

// New wires the service. A nil engine gets an uncached one over repo and a
// nil locker never blocks.
func New(repo store.Repository, engine *recalc.Engine, locker cache.AccountLocker) *Service {
	if engine == nil {
		engine = recalc.NewEngine(repo, nil, 0)
	}
	if locker == nil {
		locker = cache.NoopAccountLocker{}
	}
	return &Service{
		repo:   repo,
		engine: engine,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ResolveScope picks the account for username. An explicit accountID must be
// one of the user's memberships. Without one the oldest membership wins, and
// a user without any gets a fresh free-plan account they own.
func (s *Service) ResolveScope(ctx context.Context, username string, accountID string) (Scope, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID != "" {
		membership, err := s.repo.GetMembership(ctx, accountID, username)
		if errors.Is(err, store.ErrNotFound) {
			return Scope{}, fmt.Errorf("not a member of account %s: %w", accountID, store.ErrForbidden)
		}
		if err != nil {
			return Scope{}, err
		}
		account, err := s.repo.GetAccount(ctx, accountID)
		if err != nil {
			return Scope{}, err
		}
		return Scope{Account: *account, Username: username, Role: membership.Role}, nil
	}

	memberships, err := s.repo.ListMemberships(ctx, username)
	if err != nil {
		return Scope{}, err
	}
	if len(memberships) > 0 {
		return Scope{Account: memberships[0].Account, Username: username, Role: memberships[0].Role}, nil
	}

	account, err := s.repo.CreateAccount(ctx, domain.Account{
		Name: defaultAccountName(username),
		Plan: domain.PlanFree,
	}, username)
	if err != nil {
		return Scope{}, err
	}
	logger.Info(ctx, "created default account", "account_id", account.ID, "username", username)
	return Scope{Account: *account, Username: username, Role: domain.RoleOwner}, nil
}

func (s *Service) ListAccounts(ctx context.Context, username string) ([]domain.AccountMembership, error) {
	if strings.TrimSpace(username) == "" {
		return nil, store.ErrForbidden
	}
	return s.repo.ListMemberships(ctx, username)
}

// require fails unless the scope names an account and holds at least role.
func (s *Service) require(scope Scope, role string) error {
	if scope.Account.ID == "" {
		return fmt.Errorf("no account selected: %w", store.ErrForbidden)
	}
	if !entitlements.HasRole(scope.Role, role) {
		return fmt.Errorf("%s role required: %w", role, store.ErrForbidden)
	}
	return nil
}

// withAccountLock runs fn while holding the account's sale-write lock.
func (s *Service) withAccountLock(ctx context.Context, accountID string, fn func() error) error {
	release, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// audit records a business event in the structured log.
func (s *Service) audit(ctx context.Context, scope Scope, action string, entityType string, entityID string, keysAndValues ...any) {
	fields := []any{
		"action", action, "entity_type", entityType, "entity_id", entityID,
		"actor", scope.Username, "account_id", scope.Account.ID,
	}
	logger.Info(ctx, "audit", append(fields, keysAndValues...)...)
}

func defaultAccountName(username string) string {
	name := strings.TrimSpace(username)
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	if name == "" {
		name = "My"
	}
	return name + "'s Account"
}
