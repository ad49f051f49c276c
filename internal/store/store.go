package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrEntitlement       = errors.New("plan limit reached")
	ErrBusy              = errors.New("account busy, retry")
)

// ValidationError describes a rejected input. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a failed storage operation. The enclosing
// transaction has been rolled back when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persist wraps err unless it already carries a domain meaning callers
// branch on.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrValidation) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

type Repository interface {
	CreateAccount(ctx context.Context, account domain.Account, owner string) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListMemberships(ctx context.Context, username string) ([]domain.AccountMembership, error)
	GetMembership(ctx context.Context, accountID string, username string) (*domain.Membership, error)
	AddMembership(ctx context.Context, membership domain.Membership) error
	CountMembers(ctx context.Context, accountID string) (int, error)

	CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetItem(ctx context.Context, accountID string, itemID string) (*domain.InventoryItem, error)
	ListItems(ctx context.Context, accountID string, statuses []string) ([]domain.InventoryItem, error)
	UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	AcquireStock(ctx context.Context, accountID string, itemID string, qty int) (*domain.InventoryItem, error)
	CountItems(ctx context.Context, accountID string, statuses []string) (int, error)

	// CreateSale inserts the sale, its lines and their money events and
	// applies the quantity effects in one transaction.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, accountID string, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, accountID string) ([]domain.Sale, error)
	ListSalesForItem(ctx context.Context, accountID string, itemID string) ([]domain.Sale, error)
	// DeleteSale removes the sale, its lines and the events tied to it and
	// restores each line's quantity in one transaction.
	DeleteSale(ctx context.Context, accountID string, saleID string) error

	// RecordMoneyEvent appends an event. If the idempotency key already
	// exists the stored event is returned with created == false.
	RecordMoneyEvent(ctx context.Context, event domain.MoneyEvent) (*domain.MoneyEvent, bool, error)
	// RecordMoneyEvents records a batch atomically and returns how many were
	// new. Duplicates count as recorded; any rejected event records nothing.
	RecordMoneyEvents(ctx context.Context, events []domain.MoneyEvent) (int, error)
	// SetCostBasis stores the item's unit cost and records its
	// COST_BASIS_SET event in one transaction.
	SetCostBasis(ctx context.Context, accountID string, itemID string, unitCost decimal.Decimal, at time.Time) (*domain.InventoryItem, *domain.MoneyEvent, error)
	ListMoneyEventsByItem(ctx context.Context, accountID string, itemID string, order ledger.Order) ([]domain.MoneyEvent, error)
	ListMoneyEventsBySale(ctx context.Context, accountID string, saleID string, order ledger.Order) ([]domain.MoneyEvent, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
