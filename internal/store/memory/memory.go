package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/inventory"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
	"github.com/jayhereforshort/haulharbor/internal/logger"
	"github.com/jayhereforshort/haulharbor/internal/sales"
	"github.com/jayhereforshort/haulharbor/internal/store"
	"github.com/jayhereforshort/haulharbor/internal/xid"
)

// DemoAccountID is the account NewSeeded creates for the seeded users.
const DemoAccountID = "0192f0c8-5e2a-7000-8000-000000000001"

type Store struct {
	mu              sync.RWMutex
	accounts        map[string]domain.Account
	memberships     map[string]map[string]domain.Membership
	usersByUsername map[string]domain.UserAccount
	items           map[string]domain.InventoryItem
	salesByID       map[string]*domain.Sale
	eventsByID      map[string]domain.MoneyEvent
	eventsByKey     map[string]string
}

func New() *Store {
	return &Store{
		accounts:        make(map[string]domain.Account),
		memberships:     make(map[string]map[string]domain.Membership),
		usersByUsername: make(map[string]domain.UserAccount),
		items:           make(map[string]domain.InventoryItem),
		salesByID:       make(map[string]*domain.Sale),
		eventsByID:      make(map[string]domain.MoneyEvent),
		eventsByKey:     make(map[string]string),
	}
}

// seedUsers builds the dev/demo users. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD, falling back to dev defaults
// with a warning. The postgres store never seeds users.
func seedUsers(now time.Time) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logger.Warn(context.Background(), "memory store using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
	}{
		{"admin", adminPwd},
		{"staff", staffPwd},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("hash seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a demo account on the pro plan, an owner
// "admin", a member "staff" and a handful of items.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	s.usersByUsername = seedUsers(now)

	s.accounts[DemoAccountID] = domain.Account{ID: DemoAccountID, Name: "admin's Account", Plan: domain.PlanPro, CreatedAt: now}
	s.memberships[DemoAccountID] = map[string]domain.Membership{
		"admin": {AccountID: DemoAccountID, Username: "admin", Role: domain.RoleOwner, CreatedAt: now},
		"staff": {AccountID: DemoAccountID, Username: "staff", Role: domain.RoleMember, CreatedAt: now},
	}

	for i, seed := range []struct {
		title  string
		sku    string
		qty    int
		cost   string
		price  string
		status string
	}{
		{"Levi's 501 Jeans 32x30", "DEN-501-3230", 3, "8.50", "39.99", domain.ItemStatusListed},
		{"Pyrex Butterprint Bowl", "KIT-PYR-001", 1, "4.00", "28.00", domain.ItemStatusReady},
		{"Nintendo DS Lite", "GAM-NDS-001", 2, "22.00", "64.99", domain.ItemStatusListed},
		{"Patagonia Fleece Vest M", "OUT-PAT-M01", 1, "6.00", "45.00", domain.ItemStatusDraft},
	} {
		cost := decimal.RequireFromString(seed.cost)
		price := decimal.RequireFromString(seed.price)
		createdAt := now.Add(time.Duration(i) * time.Millisecond)
		item := domain.InventoryItem{
			ID:        xid.New(),
			AccountID: DemoAccountID,
			Title:     seed.title,
			SKU:       seed.sku,
			Status:    seed.status,
			QtyOnHand: seed.qty,
			UnitCost:  &cost,
			ListPrice: &price,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		if seed.status == domain.ItemStatusListed {
			item.QtyListed = seed.qty
		}
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) CreateAccount(_ context.Context, account domain.Account, owner string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner = normalizeUsername(owner)
	if _, ok := s.usersByUsername[owner]; !ok {
		return nil, fmt.Errorf("owner %s: %w", owner, store.ErrNotFound)
	}
	if account.ID == "" {
		account.ID = xid.New()
	}
	if account.Plan == "" {
		account.Plan = domain.PlanFree
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.accounts[account.ID]; exists {
		return nil, store.Invalid("id", "account already exists")
	}

	s.accounts[account.ID] = account
	s.memberships[account.ID] = map[string]domain.Membership{
		owner: {AccountID: account.ID, Username: owner, Role: domain.RoleOwner, CreatedAt: account.CreatedAt},
	}
	created := account
	return &created, nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &account, nil
}

// ListMemberships returns the user's accounts, oldest membership first.
func (s *Store) ListMemberships(_ context.Context, username string) ([]domain.AccountMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = normalizeUsername(username)
	type row struct {
		membership domain.Membership
		account    domain.Account
	}
	rows := make([]row, 0, 2)
	for accountID, members := range s.memberships {
		m, ok := members[username]
		if !ok {
			continue
		}
		rows = append(rows, row{membership: m, account: s.accounts[accountID]})
	}
	slices.SortFunc(rows, func(a, b row) int {
		if c := a.membership.CreatedAt.Compare(b.membership.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.account.ID, b.account.ID)
	})

	out := make([]domain.AccountMembership, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AccountMembership{Account: r.account, Role: r.membership.Role})
	}
	return out, nil
}

func (s *Store) GetMembership(_ context.Context, accountID string, username string) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[accountID][normalizeUsername(username)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) AddMembership(_ context.Context, membership domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership.Username = normalizeUsername(membership.Username)
	members, ok := s.memberships[membership.AccountID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := s.usersByUsername[membership.Username]; !ok {
		return store.ErrNotFound
	}
	if _, exists := members[membership.Username]; exists {
		return store.Invalid("username", "already a member of this account")
	}
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now().UTC()
	}
	members[membership.Username] = membership
	return nil
}

func (s *Store) CountMembers(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memberships[accountID]), nil
}

func (s *Store) CreateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[item.AccountID]; !ok {
		return nil, store.ErrNotFound
	}
	if item.ID == "" {
		item.ID = xid.New()
	}
	if item.Status == "" {
		item.Status = domain.ItemStatusDraft
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.QtySold = 0

	s.items[item.ID] = cloneItem(item)
	created := cloneItem(item)
	return &created, nil
}

func (s *Store) GetItem(_ context.Context, accountID string, itemID string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok || item.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	dup := cloneItem(item)
	return &dup, nil
}

// ListItems returns the account's items, newest first. A nil statuses slice
// means every status.
func (s *Store) ListItems(_ context.Context, accountID string, statuses []string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, 16)
	for _, item := range s.items {
		if item.AccountID != accountID {
			continue
		}
		if statuses != nil && !slices.Contains(statuses, item.Status) {
			continue
		}
		items = append(items, cloneItem(item))
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return items, nil
}

// UpdateItem replaces the editable fields. QtySold is owned by sales and is
// never taken from the argument.
func (s *Store) UpdateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[item.ID]
	if !ok || current.AccountID != item.AccountID {
		return nil, store.ErrNotFound
	}
	current.Title = item.Title
	current.SKU = item.SKU
	current.Status = item.Status
	current.QtyOnHand = item.QtyOnHand
	current.QtyListed = item.QtyListed
	current.UnitCost = item.UnitCost
	current.ListPrice = item.ListPrice
	current.ItemSpecifics = item.ItemSpecifics
	current.Tags = item.Tags
	current.UpdatedAt = time.Now().UTC()

	s.items[current.ID] = cloneItem(current)
	updated := cloneItem(current)
	return &updated, nil
}

func (s *Store) AcquireStock(_ context.Context, accountID string, itemID string, qty int) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	if err := inventory.Acquire(&item, qty); err != nil {
		return nil, err
	}
	item.UpdatedAt = time.Now().UTC()
	s.items[itemID] = item
	dup := cloneItem(item)
	return &dup, nil
}

func (s *Store) CountItems(_ context.Context, accountID string, statuses []string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		if item.AccountID != accountID {
			continue
		}
		if statuses != nil && !slices.Contains(statuses, item.Status) {
			continue
		}
		count++
	}
	return count, nil
}

// CreateSale checks every line against a working copy of its item and only
// touches the store once the whole sale is known to fit.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[sale.AccountID]; !ok {
		return nil, store.ErrNotFound
	}
	if len(sale.Lines) == 0 {
		return nil, store.Invalid("line_items", "Add at least one line item.")
	}

	working := make(map[string]domain.InventoryItem)
	for itemID, qty := range inventory.Demand(sale.Lines) {
		item, ok := s.items[itemID]
		if !ok || item.AccountID != sale.AccountID {
			return nil, fmt.Errorf("inventory item %s: %w", itemID, store.ErrNotFound)
		}
		consumed, err := inventory.Sell(&item, qty)
		if err != nil {
			return nil, err
		}
		inventory.Note(sale.Lines, itemID, consumed)
		working[itemID] = item
	}

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	sale.CreatedAt = now
	sale.UpdatedAt = now
	for i := range sale.Lines {
		if sale.Lines[i].ID == "" {
			sale.Lines[i].ID = xid.New()
		}
		sale.Lines[i].SaleID = sale.ID
		sale.Lines[i].AccountID = sale.AccountID
		sale.Lines[i].CreatedAt = now
	}

	events := sales.Events(sale)
	for _, e := range events {
		if key, ok := ledger.Key(e); ok {
			if _, exists := s.eventsByKey[key]; exists {
				return nil, store.Invalid("id", "sale already recorded")
			}
		}
	}

	for itemID, item := range working {
		item.UpdatedAt = now
		s.items[itemID] = item
	}
	s.salesByID[sale.ID] = cloneSale(&sale)
	for _, e := range events {
		s.putEvent(e)
	}
	return cloneSale(&sale), nil
}

func (s *Store) GetSale(_ context.Context, accountID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok || sale.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, accountID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectSales(func(sale *domain.Sale) bool {
		return sale.AccountID == accountID
	}), nil
}

func (s *Store) ListSalesForItem(_ context.Context, accountID string, itemID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectSales(func(sale *domain.Sale) bool {
		if sale.AccountID != accountID {
			return false
		}
		return slices.ContainsFunc(sale.Lines, func(line domain.SaleLineItem) bool {
			return line.InventoryItemID == itemID
		})
	}), nil
}

func (s *Store) DeleteSale(_ context.Context, accountID string, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok || sale.AccountID != accountID {
		return store.ErrNotFound
	}

	now := time.Now().UTC()
	for itemID, release := range inventory.Releases(sale.Lines) {
		item, ok := s.items[itemID]
		if !ok {
			continue
		}
		inventory.Restore(&item, release.Qty, release.Consumption)
		item.UpdatedAt = now
		s.items[itemID] = item
	}

	for id, e := range s.eventsByID {
		if e.SaleID == nil || *e.SaleID != saleID {
			continue
		}
		delete(s.eventsByID, id)
		if key, ok := ledger.Key(e); ok {
			delete(s.eventsByKey, key)
		}
	}
	delete(s.salesByID, saleID)
	return nil
}

func (s *Store) RecordMoneyEvent(_ context.Context, event domain.MoneyEvent) (*domain.MoneyEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEvent(event); err != nil {
		return nil, false, err
	}
	out, created := s.appendEvent(event)
	return &out, created, nil
}

// RecordMoneyEvents checks every event before recording any of them, so a
// rejected batch leaves nothing behind.
func (s *Store) RecordMoneyEvents(_ context.Context, events []domain.MoneyEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, event := range events {
		if err := s.checkEvent(event); err != nil {
			return 0, fmt.Errorf("event %d: %w", i, err)
		}
	}
	created := 0
	for _, event := range events {
		if _, ok := s.appendEvent(event); ok {
			created++
		}
	}
	return created, nil
}

// checkEvent must be called with the lock held. It resolves the event's
// item and sale inside the event's own account before any key lookup.
func (s *Store) checkEvent(event domain.MoneyEvent) error {
	if err := ledger.Validate(event); err != nil {
		return store.Invalid("event", err.Error())
	}
	item, ok := s.items[event.InventoryItemID]
	if !ok || item.AccountID != event.AccountID {
		return fmt.Errorf("inventory item %s: %w", event.InventoryItemID, store.ErrNotFound)
	}
	if event.SaleID != nil {
		if sale, ok := s.salesByID[*event.SaleID]; !ok || sale.AccountID != event.AccountID {
			return fmt.Errorf("sale %s: %w", *event.SaleID, store.ErrNotFound)
		}
	}
	return nil
}

// appendEvent must be called with the write lock held and a checked event.
func (s *Store) appendEvent(event domain.MoneyEvent) (domain.MoneyEvent, bool) {
	if key, ok := ledger.Key(event); ok {
		if id, exists := s.eventsByKey[key]; exists {
			return cloneEvent(s.eventsByID[id]), false
		}
	}
	if event.ID == "" {
		event.ID = xid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.putEvent(event)
	return cloneEvent(event), true
}

// SetCostBasis stores unitCost on the item and records the COST_BASIS_SET
// event for everything on hand under one lock.
func (s *Store) SetCostBasis(_ context.Context, accountID string, itemID string, unitCost decimal.Decimal, at time.Time) (*domain.InventoryItem, *domain.MoneyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.AccountID != accountID {
		return nil, nil, store.ErrNotFound
	}
	event := ledger.CostBasisEvent(item, unitCost, at)
	if err := s.checkEvent(event); err != nil {
		return nil, nil, err
	}

	item.UnitCost = &unitCost
	item.UpdatedAt = time.Now().UTC()
	s.items[itemID] = item
	recorded, _ := s.appendEvent(event)
	updated := cloneItem(item)
	return &updated, &recorded, nil
}

func (s *Store) ListMoneyEventsByItem(_ context.Context, accountID string, itemID string, order ledger.Order) ([]domain.MoneyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectEvents(order, func(e domain.MoneyEvent) bool {
		return e.AccountID == accountID && e.InventoryItemID == itemID
	}), nil
}

func (s *Store) ListMoneyEventsBySale(_ context.Context, accountID string, saleID string, order ledger.Order) ([]domain.MoneyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectEvents(order, func(e domain.MoneyEvent) bool {
		return e.AccountID == accountID && e.SaleID != nil && *e.SaleID == saleID
	}), nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := normalizeUsername(user.Username)
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username", "username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.Invalid("username", "already taken")
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = normalizeUsername(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("password", "is required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// putEvent must be called with the write lock held.
func (s *Store) putEvent(e domain.MoneyEvent) {
	s.eventsByID[e.ID] = cloneEvent(e)
	if key, ok := ledger.Key(e); ok {
		s.eventsByKey[key] = e.ID
	}
}

func (s *Store) collectEvents(order ledger.Order, keep func(domain.MoneyEvent) bool) []domain.MoneyEvent {
	events := make([]domain.MoneyEvent, 0, 16)
	for _, e := range s.eventsByID {
		if keep(e) {
			events = append(events, cloneEvent(e))
		}
	}
	ledger.SortEvents(events, order)
	return events
}

// collectSales orders sales newest sale date first, then newest created.
func (s *Store) collectSales(keep func(*domain.Sale) bool) []domain.Sale {
	out := make([]domain.Sale, 0, 16)
	for _, sale := range s.salesByID {
		if keep(sale) {
			out = append(out, *cloneSale(sale))
		}
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if c := strings.Compare(b.SaleDate, a.SaleDate); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func cloneItem(src domain.InventoryItem) domain.InventoryItem {
	dup := src
	if src.ItemSpecifics != nil {
		dup.ItemSpecifics = make(map[string]string, len(src.ItemSpecifics))
		for k, v := range src.ItemSpecifics {
			dup.ItemSpecifics[k] = v
		}
	}
	if src.Tags != nil {
		dup.Tags = slices.Clone(src.Tags)
	}
	return dup
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Lines = slices.Clone(src.Lines)
	if src.Buyer != nil {
		buyer := *src.Buyer
		dup.Buyer = &buyer
	}
	return &dup
}

func cloneEvent(src domain.MoneyEvent) domain.MoneyEvent {
	dup := src
	if src.SaleID != nil {
		saleID := *src.SaleID
		dup.SaleID = &saleID
	}
	if src.Channel != nil {
		channel := *src.Channel
		dup.Channel = &channel
	}
	if src.ExternalID != nil {
		ext := *src.ExternalID
		dup.ExternalID = &ext
	}
	return dup
}
