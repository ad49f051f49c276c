package recalc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jayhereforshort/haulharbor/internal/cache"
	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
	"github.com/jayhereforshort/haulharbor/internal/logger"
)

type Mode string

const (
	ModeEvents Mode = "events"
	ModeSales  Mode = "sales"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case "", ModeEvents:
		return ModeEvents, true
	case ModeSales:
		return ModeSales, true
	}
	return "", false
}

// Facts is the read side the engine needs.
type Facts interface {
	GetSale(ctx context.Context, accountID string, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, accountID string) ([]domain.Sale, error)
	ListSalesForItem(ctx context.Context, accountID string, itemID string) ([]domain.Sale, error)
	ListMoneyEventsByItem(ctx context.Context, accountID string, itemID string, order ledger.Order) ([]domain.MoneyEvent, error)
	ListMoneyEventsBySale(ctx context.Context, accountID string, saleID string, order ledger.Order) ([]domain.MoneyEvent, error)
}

type Engine struct {
	facts Facts
	cache cache.TotalsCache
	ttl   time.Duration

	// bypass is set while a generation bump has failed; reads then skip the
	// cache until a later bump succeeds.
	mu     sync.Mutex
	bypass map[string]bool
}

func NewEngine(facts Facts, totalsCache cache.TotalsCache, ttl time.Duration) *Engine {
	if totalsCache == nil {
		totalsCache = cache.NoopTotalsCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Engine{facts: facts, cache: totalsCache, ttl: ttl, bypass: make(map[string]bool)}
}

func (e *Engine) ItemTotals(ctx context.Context, accountID string, itemID string, mode Mode) (domain.ItemTotals, error) {
	var out domain.ItemTotals
	err := e.cached(ctx, accountID, fmt.Sprintf("item:%s:%s", mode, itemID), &out, func() error {
		if mode == ModeSales {
			saleList, err := e.facts.ListSalesForItem(ctx, accountID, itemID)
			if err != nil {
				return err
			}
			out = ItemFromSales(itemID, saleList)
			return nil
		}
		events, err := e.facts.ListMoneyEventsByItem(ctx, accountID, itemID, ledger.Chronological)
		if err != nil {
			return err
		}
		out = ItemFromEvents(itemID, events)
		return nil
	})
	return out, err
}

func (e *Engine) SaleTotals(ctx context.Context, accountID string, saleID string, mode Mode) (domain.SaleTotals, error) {
	var out domain.SaleTotals
	err := e.cached(ctx, accountID, fmt.Sprintf("sale:%s:%s", mode, saleID), &out, func() error {
		if mode == ModeSales {
			sale, err := e.facts.GetSale(ctx, accountID, saleID)
			if err != nil {
				return err
			}
			out = SaleFromRecord(*sale)
			return nil
		}
		// Confirms the sale exists so a missing sale is not reported as zeros.
		if _, err := e.facts.GetSale(ctx, accountID, saleID); err != nil {
			return err
		}
		events, err := e.facts.ListMoneyEventsBySale(ctx, accountID, saleID, ledger.Chronological)
		if err != nil {
			return err
		}
		out = SaleFromEvents(saleID, events)
		return nil
	})
	return out, err
}

// AccountSales returns every sale of the account with its totals, indexed by
// sale id.
func (e *Engine) AccountSales(ctx context.Context, accountID string) ([]domain.Sale, map[string]domain.SaleTotals, error) {
	saleList, err := e.facts.ListSales(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	var totals map[string]domain.SaleTotals
	err = e.cached(ctx, accountID, "sales:all", &totals, func() error {
		totals = make(map[string]domain.SaleTotals, len(saleList))
		for _, sale := range saleList {
			totals[sale.ID] = SaleFromRecord(sale)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return saleList, totals, nil
}

// Invalidate must be called after every committed write to the account's
// facts.
func (e *Engine) Invalidate(ctx context.Context, accountID string) {
	if err := e.cache.Bump(ctx, accountID); err != nil {
		logger.Error(ctx, "totals cache invalidation failed, bypassing cache", "account_id", accountID, "error", err)
		e.setBypass(accountID, true)
		return
	}
	e.setBypass(accountID, false)
}

func (e *Engine) cached(ctx context.Context, accountID string, name string, dest any, compute func() error) error {
	if e.isBypassed(accountID) {
		return compute()
	}

	gen, err := e.cache.Generation(ctx, accountID)
	if err != nil {
		logger.Warn(ctx, "totals cache generation unavailable", "account_id", accountID, "error", err)
		return compute()
	}
	key := fmt.Sprintf("totals:%s:%d:%s", accountID, gen, name)

	hit, err := e.cache.Get(ctx, key, dest)
	if err != nil {
		logger.Warn(ctx, "totals cache read failed", "key", key, "error", err)
	}
	if hit {
		return nil
	}

	if err := compute(); err != nil {
		return err
	}
	if err := e.cache.Set(ctx, key, dest, e.ttl); err != nil {
		logger.Warn(ctx, "totals cache write failed", "key", key, "error", err)
	}
	return nil
}

func (e *Engine) setBypass(accountID string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on {
		e.bypass[accountID] = true
		return
	}
	delete(e.bypass, accountID)
}

func (e *Engine) isBypassed(accountID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bypass[accountID]
}
