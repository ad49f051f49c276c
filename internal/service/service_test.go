package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
	"github.com/jayhereforshort/haulharbor/internal/recalc"
	"github.com/jayhereforshort/haulharbor/internal/store"
	"github.com/jayhereforshort/haulharbor/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, nil, nil), repo
}

func actingAs(svc *Service, username string) Scope {
	scope, err := svc.ResolveScope(context.Background(), username, memory.DemoAccountID)
	if err != nil {
		panic(fmt.Sprintf("resolve scope for %s: %v", username, err))
	}
	return scope
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func mustItem(t *testing.T, svc *Service, scope Scope, qty int, status string) domain.InventoryItem {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), scope, domain.ItemCreateRequest{
		Title:     "Test Item",
		Status:    status,
		QtyOnHand: qty,
		QtyListed: qty,
		UnitCost:  decPtr("10"),
	})
	if err != nil {
		t.Fatalf("create item failed: %v", err)
	}
	return item
}

func mustSale(t *testing.T, svc *Service, scope Scope, req domain.SaleCreateRequest) string {
	t.Helper()
	resp, err := svc.CreateSale(context.Background(), scope, req)
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if !resp.OK || resp.SaleID == "" {
		t.Fatalf("unexpected create sale response: %+v", resp)
	}
	return resp.SaleID
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got)
	}
}

func TestCreateSaleComputesTotals(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 3, domain.ItemStatusListed)

	saleID := mustSale(t, svc, scope, domain.SaleCreateRequest{
		Channel:  domain.ChannelEbay,
		SaleDate: "2026-03-10",
		Fees:     dec("5"),
		LineItems: []domain.SaleLineRequest{{
			InventoryItemID: item.ID,
			QtySold:         2,
			UnitPrice:       dec("50"),
			SoldUnitCost:    decPtr("10"),
		}},
	})

	detail, err := svc.GetSale(ctx, scope, saleID, recalc.ModeEvents)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if detail.Sale.Status != domain.SaleStatusPaid {
		t.Fatalf("expected default status paid, got %s", detail.Sale.Status)
	}
	assertDecimal(t, "gross", detail.Totals.Gross, "100")
	assertDecimal(t, "net", detail.Totals.Net, "95")
	assertDecimal(t, "cost", detail.Totals.Cost, "20")
	assertDecimal(t, "profit", detail.Totals.Profit, "75")
	if detail.Totals.Margin == nil || domain.RoundMoney(*detail.Totals.Margin).String() != "78.95" {
		t.Fatalf("expected margin 78.95, got %v", detail.Totals.Margin)
	}

	updated, err := svc.GetItem(ctx, scope, item.ID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if updated.QtySold != 2 || updated.QtyOnHand != 3 || updated.QtyListed != 1 {
		t.Fatalf("unexpected quantities: %+v", updated)
	}
}

func TestCreateSaleRejectsEmptyLines(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")

	_, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{Channel: domain.ChannelOffline, SaleDate: "2026-03-10"})
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Message != "Add at least one line item." {
		t.Fatalf("unexpected message %q", verr.Message)
	}
}

func TestCreateSaleValidatesLines(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 1, domain.ItemStatusReady)

	cases := map[string]domain.SaleLineRequest{
		"zero qty":      {InventoryItemID: item.ID, QtySold: 0, UnitPrice: dec("1")},
		"zero price":    {InventoryItemID: item.ID, QtySold: 1, UnitPrice: dec("0")},
		"negative cost": {InventoryItemID: item.ID, QtySold: 1, UnitPrice: dec("1"), SoldUnitCost: decPtr("-1")},
		"negative fee":  {InventoryItemID: item.ID, QtySold: 1, UnitPrice: dec("1"), LineFees: dec("-0.01")},
		"missing item":  {QtySold: 1, UnitPrice: dec("1")},
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
				Channel:   domain.ChannelOffline,
				SaleDate:  "2026-03-10",
				LineItems: []domain.SaleLineRequest{line},
			})
			if !errors.Is(err, store.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateSaleInsufficientStockChangesNothing(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	a := mustItem(t, svc, scope, 2, domain.ItemStatusListed)
	b := mustItem(t, svc, scope, 1, domain.ItemStatusListed)

	_, err := svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		Channel:  domain.ChannelEbay,
		SaleDate: "2026-03-10",
		LineItems: []domain.SaleLineRequest{
			{InventoryItemID: a.ID, QtySold: 1, UnitPrice: dec("10")},
			{InventoryItemID: b.ID, QtySold: 2, UnitPrice: dec("10")},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	for _, id := range []string{a.ID, b.ID} {
		item, err := svc.GetItem(ctx, scope, id)
		if err != nil {
			t.Fatalf("get item failed: %v", err)
		}
		if item.QtySold != 0 {
			t.Fatalf("expected no quantity consumed on %s, got %d", id, item.QtySold)
		}
		events, err := svc.ListItemEvents(ctx, scope, id)
		if err != nil {
			t.Fatalf("list events failed: %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("expected no events, got %d", len(events))
		}
	}
}

func TestDeleteSaleRestoresQuantityAndTotals(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 1, domain.ItemStatusListed)

	saleID := mustSale(t, svc, scope, domain.SaleCreateRequest{
		Channel:   domain.ChannelOffline,
		SaleDate:  "2026-03-10",
		LineItems: []domain.SaleLineRequest{{InventoryItemID: item.ID, QtySold: 1, UnitPrice: dec("30")}},
	})

	sold, err := svc.GetItem(ctx, scope, item.ID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if sold.Status != domain.ItemStatusSold {
		t.Fatalf("expected sold status, got %s", sold.Status)
	}

	if err := svc.DeleteSale(ctx, scope, saleID); err != nil {
		t.Fatalf("delete sale failed: %v", err)
	}
	restored, err := svc.GetItem(ctx, scope, item.ID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if restored.Status != item.Status || restored.QtyOnHand != item.QtyOnHand ||
		restored.QtyListed != item.QtyListed || restored.QtySold != item.QtySold {
		t.Fatalf("expected item restored to %+v, got %+v", item, restored)
	}

	totals, err := svc.ItemTotals(ctx, scope, item.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "gross after delete", totals.Gross, "0")

	if _, err := svc.GetSale(ctx, scope, saleID, recalc.ModeSales); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted sale to be gone, got %v", err)
	}
}

func TestTotalsModesAgree(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	a := mustItem(t, svc, scope, 5, domain.ItemStatusListed)
	b := mustItem(t, svc, scope, 5, domain.ItemStatusListed)

	single := mustSale(t, svc, scope, domain.SaleCreateRequest{
		Channel:  domain.ChannelEbay,
		SaleDate: "2026-03-01",
		Fees:     dec("4.20"),
		Taxes:    dec("1.10"),
		Shipping: dec("6.00"),
		LineItems: []domain.SaleLineRequest{{
			InventoryItemID: a.ID, QtySold: 2, UnitPrice: dec("24.99"), SoldUnitCost: decPtr("8.50"),
			LineFees: dec("0.30"),
		}},
	})
	multi := mustSale(t, svc, scope, domain.SaleCreateRequest{
		Channel:  domain.ChannelWholesale,
		SaleDate: "2026-03-02",
		Fees:     dec("3"),
		Shipping: dec("12"),
		LineItems: []domain.SaleLineRequest{
			{InventoryItemID: a.ID, QtySold: 1, UnitPrice: dec("20"), SoldUnitCost: decPtr("8.50"), LineShipping: dec("1.25")},
			{InventoryItemID: b.ID, QtySold: 3, UnitPrice: dec("15"), LineTaxes: dec("0.75")},
		},
	})

	for _, itemID := range []string{a.ID, b.ID} {
		fromEvents, err := svc.ItemTotals(ctx, scope, itemID, "events")
		if err != nil {
			t.Fatalf("events totals failed: %v", err)
		}
		fromSales, err := svc.ItemTotals(ctx, scope, itemID, "sales")
		if err != nil {
			t.Fatalf("sales totals failed: %v", err)
		}
		assertDecimal(t, "item gross", fromEvents.Gross, fromSales.Gross.String())
		assertDecimal(t, "item fees", fromEvents.Fees, fromSales.Fees.String())
		assertDecimal(t, "item taxes", fromEvents.Taxes, fromSales.Taxes.String())
		assertDecimal(t, "item shipping", fromEvents.Shipping, fromSales.Shipping.String())
		assertDecimal(t, "item net", fromEvents.Net, fromSales.Net.String())
		assertDecimal(t, "item cost", fromEvents.Cost, fromSales.Cost.String())
		assertDecimal(t, "item profit", fromEvents.Profit, fromSales.Profit.String())
	}

	for _, saleID := range []string{single, multi} {
		fromEvents, err := svc.GetSale(ctx, scope, saleID, recalc.ModeEvents)
		if err != nil {
			t.Fatalf("events sale failed: %v", err)
		}
		fromSales, err := svc.GetSale(ctx, scope, saleID, recalc.ModeSales)
		if err != nil {
			t.Fatalf("sales sale failed: %v", err)
		}
		assertDecimal(t, "sale net", fromEvents.Totals.Net, fromSales.Totals.Net.String())
		assertDecimal(t, "sale profit", fromEvents.Totals.Profit, fromSales.Totals.Profit.String())
		assertDecimal(t, "sale cost", fromEvents.Totals.Cost, fromSales.Totals.Cost.String())
	}

	// Shared charges of the multi-line sale stay out of item b.
	bTotals, err := svc.ItemTotals(ctx, scope, b.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "item b fees", bTotals.Fees, "0")
	assertDecimal(t, "item b net", bTotals.Net, "44.25")
}

func TestItemTotalsRejectsUnknownMode(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 1, domain.ItemStatusDraft)

	if _, err := svc.ItemTotals(ctx, scope, item.ID, "ledger"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.ItemTotals(ctx, scope, "missing", "events"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type mapCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	gens    map[string]int64
	failing bool
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string][]byte{}, gens: map[string]int64{}}
}

func (c *mapCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *mapCache) Generation(_ context.Context, accountID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[accountID], nil
}

func (c *mapCache) Bump(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("cache down")
	}
	c.gens[accountID]++
	return nil
}

func TestTotalsCacheInvalidatedByWrites(t *testing.T) {
	repo := memory.NewSeeded()
	totalsCache := newMapCache()
	svc := New(repo, recalc.NewEngine(repo, totalsCache, time.Minute), nil)
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 3, domain.ItemStatusListed)

	sale := func() {
		mustSale(t, svc, scope, domain.SaleCreateRequest{
			Channel:   domain.ChannelOffline,
			SaleDate:  "2026-03-10",
			LineItems: []domain.SaleLineRequest{{InventoryItemID: item.ID, QtySold: 1, UnitPrice: dec("10")}},
		})
	}

	sale()
	first, err := svc.ItemTotals(ctx, scope, item.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "first gross", first.Gross, "10")

	sale()
	second, err := svc.ItemTotals(ctx, scope, item.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "gross after second sale", second.Gross, "20")

	totalsCache.failing = true
	sale()
	third, err := svc.ItemTotals(ctx, scope, item.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "gross with failed invalidation", third.Gross, "30")
}

func TestImportMoneyEventsCountsDuplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "admin")
	item := mustItem(t, svc, scope, 1, domain.ItemStatusReady)

	ext := "ebay-refund-77"
	req := domain.MoneyEventImportRequest{Events: []domain.MoneyEventImport{
		{InventoryItemID: item.ID, EventType: "refund", Amount: dec("5"), Source: "ebay", ExternalID: &ext},
		{InventoryItemID: item.ID, EventType: ledger.Adjustment, Amount: dec("-1.50"), Source: "manual"},
	}}

	resp, err := svc.ImportMoneyEvents(ctx, scope, req)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if resp.Created != 2 || resp.Duplicates != 0 {
		t.Fatalf("unexpected first import: %+v", resp)
	}

	resp, err = svc.ImportMoneyEvents(ctx, scope, domain.MoneyEventImportRequest{Events: req.Events[:1]})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if resp.Created != 0 || resp.Duplicates != 1 {
		t.Fatalf("unexpected second import: %+v", resp)
	}

	totals, err := svc.ItemTotals(ctx, scope, item.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "refunds", totals.Refunds, "5")
	assertDecimal(t, "adjustments", totals.Adjustments, "-1.50")
	assertDecimal(t, "net", totals.Net, "-6.50")

	_, err = svc.ImportMoneyEvents(ctx, scope, domain.MoneyEventImportRequest{Events: []domain.MoneyEventImport{
		{InventoryItemID: item.ID, EventType: ledger.SoldRevenue, Amount: dec("1"), Source: ledger.SourceSaleLine},
	}})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected reserved source to be rejected, got %v", err)
	}
}

func TestMemberCannotImportOrAddMembers(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")

	_, err := svc.ImportMoneyEvents(ctx, scope, domain.MoneyEventImportRequest{Events: []domain.MoneyEventImport{
		{InventoryItemID: "x", EventType: ledger.Fee, Amount: dec("1"), Source: "manual"},
	}})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err = svc.AddMember(ctx, scope, domain.MemberAddRequest{Username: "helper", Password: "password1", Role: domain.RoleMember})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRequestWithoutScopeIsForbidden(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ListItems(context.Background(), Scope{}, ""); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestResolveScope(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	scope, err := svc.ResolveScope(ctx, "staff", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if scope.Account.ID != memory.DemoAccountID || scope.Role != domain.RoleMember {
		t.Fatalf("expected demo membership, got %+v", scope)
	}

	if err := repo.CreateUser(ctx, domain.UserAccount{Username: "newbie", Password: "hash"}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if _, err := svc.ResolveScope(ctx, "newbie", memory.DemoAccountID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden for foreign account, got %v", err)
	}

	backfilled, err := svc.ResolveScope(ctx, "newbie", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if backfilled.Account.Name != "newbie's Account" || backfilled.Account.Plan != domain.PlanFree || backfilled.Role != domain.RoleOwner {
		t.Fatalf("unexpected backfilled scope: %+v", backfilled)
	}

	again, err := svc.ResolveScope(ctx, "newbie", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if again.Account.ID != backfilled.Account.ID {
		t.Fatalf("expected the same account on second resolve")
	}
}

func TestFreePlanLimits(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	if err := repo.CreateUser(ctx, domain.UserAccount{Username: "solo", Password: "hash"}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	scope, err := svc.ResolveScope(ctx, "solo", "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	for i := range 5 {
		if _, err := svc.CreateItem(ctx, scope, domain.ItemCreateRequest{Title: fmt.Sprintf("Listing %d", i), Status: domain.ItemStatusListed, QtyOnHand: 1}); err != nil {
			t.Fatalf("create listing %d failed: %v", i, err)
		}
	}
	_, err = svc.CreateItem(ctx, scope, domain.ItemCreateRequest{Title: "One too many", Status: domain.ItemStatusListed, QtyOnHand: 1})
	if !errors.Is(err, store.ErrEntitlement) {
		t.Fatalf("expected listing limit, got %v", err)
	}
	if _, err := svc.CreateItem(ctx, scope, domain.ItemCreateRequest{Title: "Still a draft", QtyOnHand: 1}); err != nil {
		t.Fatalf("drafts are not listings: %v", err)
	}

	_, err = svc.AddMember(ctx, scope, domain.MemberAddRequest{Username: "helper", Password: "password1", Role: domain.RoleMember})
	if !errors.Is(err, store.ErrEntitlement) {
		t.Fatalf("expected user limit on free plan, got %v", err)
	}
}

func TestAddMemberCreatesLogin(t *testing.T) {
	svc, repo := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "admin")

	membership, err := svc.AddMember(ctx, scope, domain.MemberAddRequest{Username: "Helper", Password: "password1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	if membership.Username != "helper" {
		t.Fatalf("expected normalized username, got %s", membership.Username)
	}
	got, err := repo.GetMembership(context.Background(), memory.DemoAccountID, "helper")
	if err != nil || got.Role != domain.RoleAdmin {
		t.Fatalf("expected admin membership, got %+v err=%v", got, err)
	}

	if _, err := svc.AddMember(ctx, scope, domain.MemberAddRequest{Username: "helper", Password: "password1", Role: domain.RoleMember}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected duplicate membership rejected, got %v", err)
	}
}

func TestSetCostBasisRecordsEvent(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 4, domain.ItemStatusReady)

	event, err := svc.SetCostBasis(ctx, scope, item.ID, domain.CostBasisRequest{UnitCost: dec("2.50")})
	if err != nil {
		t.Fatalf("set cost basis failed: %v", err)
	}
	if event.EventType != ledger.CostBasisSet {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	assertDecimal(t, "basis amount", event.Amount, "10")

	totals, err := svc.ItemTotals(ctx, scope, item.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "cost basis", totals.CostBasis, "10")
	assertDecimal(t, "profit untouched", totals.Profit, "0")
}

func TestSetCostBasisTwiceKeepsLatest(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 4, domain.ItemStatusReady)

	for _, cost := range []string{"2.50", "3.00"} {
		if _, err := svc.SetCostBasis(ctx, scope, item.ID, domain.CostBasisRequest{UnitCost: dec(cost)}); err != nil {
			t.Fatalf("set cost basis %s failed: %v", cost, err)
		}
	}

	totals, err := svc.ItemTotals(ctx, scope, item.ID, "events")
	if err != nil {
		t.Fatalf("item totals failed: %v", err)
	}
	assertDecimal(t, "cost basis", totals.CostBasis, "12")

	updated, err := svc.GetItem(ctx, scope, item.ID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if updated.UnitCost == nil || !updated.UnitCost.Equal(dec("3")) {
		t.Fatalf("expected unit cost 3.00, got %v", updated.UnitCost)
	}
}

func TestImportMoneyEventsIsAllOrNothing(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "admin")
	item := mustItem(t, svc, scope, 1, domain.ItemStatusReady)

	_, err := svc.ImportMoneyEvents(ctx, scope, domain.MoneyEventImportRequest{Events: []domain.MoneyEventImport{
		{InventoryItemID: item.ID, EventType: ledger.Fee, Amount: dec("1"), Source: "manual"},
		{InventoryItemID: item.ID, EventType: "bogus", Amount: dec("1"), Source: "manual"},
	}})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.ImportMoneyEvents(ctx, scope, domain.MoneyEventImportRequest{Events: []domain.MoneyEventImport{
		{InventoryItemID: item.ID, EventType: ledger.Fee, Amount: dec("1"), Source: "manual"},
		{InventoryItemID: "missing", EventType: ledger.Fee, Amount: dec("1"), Source: "manual"},
	}})
	if err == nil {
		t.Fatalf("expected unknown item to fail the batch")
	}

	events, err := svc.ListItemEvents(ctx, scope, item.ID)
	if err != nil {
		t.Fatalf("list events failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events from failed batches, got %d", len(events))
	}
}

func TestSubCentAmountsRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "admin")
	item := mustItem(t, svc, scope, 2, domain.ItemStatusListed)

	_, err := svc.ImportMoneyEvents(ctx, scope, domain.MoneyEventImportRequest{Events: []domain.MoneyEventImport{
		{InventoryItemID: item.ID, EventType: ledger.Fee, Amount: dec("1.005"), Source: "manual"},
	}})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected sub-cent import rejected, got %v", err)
	}

	_, err = svc.CreateSale(ctx, scope, domain.SaleCreateRequest{
		Channel:   domain.ChannelOffline,
		SaleDate:  "2026-03-10",
		LineItems: []domain.SaleLineRequest{{InventoryItemID: item.ID, QtySold: 1, UnitPrice: dec("9.999")}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected sub-cent price rejected, got %v", err)
	}

	if _, err := svc.SetCostBasis(ctx, scope, item.ID, domain.CostBasisRequest{UnitCost: dec("0.001")}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected sub-cent cost basis rejected, got %v", err)
	}
}

func TestUpdateItemClampsListedQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 2, domain.ItemStatusReady)

	listed := domain.ItemStatusListed
	qty := 9
	updated, err := svc.UpdateItem(ctx, scope, item.ID, domain.ItemUpdateRequest{Status: &listed, QtyListed: &qty})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.QtyListed != 2 || updated.Status != domain.ItemStatusListed {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	acquired, err := svc.AcquireStock(ctx, scope, item.ID, domain.AcquireRequest{Qty: 3})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if acquired.QtyOnHand != 5 {
		t.Fatalf("expected 5 on hand, got %d", acquired.QtyOnHand)
	}
}

func TestItemSaleHistoryNewestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 5, domain.ItemStatusListed)

	for _, date := range []string{"2026-02-01", "2026-02-15"} {
		mustSale(t, svc, scope, domain.SaleCreateRequest{
			Channel:   domain.ChannelEbay,
			SaleDate:  date,
			LineItems: []domain.SaleLineRequest{{InventoryItemID: item.ID, QtySold: 2, UnitPrice: dec("7.25")}},
		})
	}

	history, err := svc.ItemSaleHistory(ctx, scope, item.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 || history[0].SaleDate != "2026-02-15" {
		t.Fatalf("unexpected history: %+v", history)
	}
	assertDecimal(t, "line total", history[0].LineTotal, "14.50")
}

func TestDashboardWindows(t *testing.T) {
	svc, _ := newTestService()
	svc.now = func() time.Time { return time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC) }
	ctx, scope := context.Background(), actingAs(svc, "staff")
	item := mustItem(t, svc, scope, 10, domain.ItemStatusListed)

	for _, s := range []struct {
		date  string
		price string
	}{
		{"2026-03-30", "40"},
		{"2026-03-10", "25"},
		{"2026-01-01", "99"},
	} {
		mustSale(t, svc, scope, domain.SaleCreateRequest{
			Channel:  domain.ChannelEbay,
			SaleDate: s.date,
			LineItems: []domain.SaleLineRequest{{
				InventoryItemID: item.ID, QtySold: 1, UnitPrice: dec(s.price), SoldUnitCost: decPtr("10"),
			}},
		})
	}

	dash, err := svc.Dashboard(ctx, scope)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	assertDecimal(t, "revenue 7d", dash.Revenue7d, "40")
	assertDecimal(t, "revenue 30d", dash.Revenue30d, "65")
	assertDecimal(t, "profit 30d", dash.NetProfit30d, "45")
	assertDecimal(t, "cogs 30d", dash.Cogs30d, "20")
	if len(dash.RevenueByDay) != 2 || dash.RevenueByDay[0].Date != "2026-03-10" {
		t.Fatalf("unexpected revenue by day: %+v", dash.RevenueByDay)
	}
	if dash.ActiveInventoryCount == 0 {
		t.Fatalf("expected active inventory to be counted")
	}
}
