package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/inventory"
	"github.com/jayhereforshort/haulharbor/internal/ledger"
	"github.com/jayhereforshort/haulharbor/internal/sales"
	"github.com/jayhereforshort/haulharbor/internal/store"
	"github.com/jayhereforshort/haulharbor/internal/xid"
)

var saleColumns = []string{
	"id::text AS id", "account_id::text AS account_id", "channel", "buyer",
	"to_char(sale_date, 'YYYY-MM-DD') AS sale_date", "status", "fees", "taxes", "shipping",
	"created_at", "updated_at",
}

var lineColumns = []string{
	"id::text AS id", "sale_id::text AS sale_id", "account_id::text AS account_id",
	"inventory_item_id::text AS inventory_item_id", "qty_sold", "unit_price", "sold_unit_cost",
	"line_fees", "line_taxes", "line_shipping", "listed_released", "prior_status", "created_at",
}

var eventColumns = []string{
	"id::text AS id", "account_id::text AS account_id", "inventory_item_id::text AS inventory_item_id",
	"sale_id::text AS sale_id", "channel", "event_type", "amount", "source", "external_id", "created_at",
}

type saleRow struct {
	ID        string          `db:"id"`
	AccountID string          `db:"account_id"`
	Channel   string          `db:"channel"`
	Buyer     *string         `db:"buyer"`
	SaleDate  string          `db:"sale_date"`
	Status    string          `db:"status"`
	Fees      decimal.Decimal `db:"fees"`
	Taxes     decimal.Decimal `db:"taxes"`
	Shipping  decimal.Decimal `db:"shipping"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type lineRow struct {
	ID              string           `db:"id"`
	SaleID          string           `db:"sale_id"`
	AccountID       string           `db:"account_id"`
	InventoryItemID string           `db:"inventory_item_id"`
	QtySold         int              `db:"qty_sold"`
	UnitPrice       decimal.Decimal  `db:"unit_price"`
	SoldUnitCost    *decimal.Decimal `db:"sold_unit_cost"`
	LineFees        decimal.Decimal  `db:"line_fees"`
	LineTaxes       decimal.Decimal  `db:"line_taxes"`
	LineShipping    decimal.Decimal  `db:"line_shipping"`
	ListedReleased  int              `db:"listed_released"`
	PriorStatus     *string          `db:"prior_status"`
	CreatedAt       time.Time        `db:"created_at"`
}

type eventRow struct {
	ID              string          `db:"id"`
	AccountID       string          `db:"account_id"`
	InventoryItemID string          `db:"inventory_item_id"`
	SaleID          *string         `db:"sale_id"`
	Channel         *string         `db:"channel"`
	EventType       string          `db:"event_type"`
	Amount          decimal.Decimal `db:"amount"`
	Source          string          `db:"source"`
	ExternalID      *string         `db:"external_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (r eventRow) toDomain() domain.MoneyEvent {
	return domain.MoneyEvent(r)
}

// CreateSale locks every referenced item row, checks the summed demand per
// item and writes the sale, its lines, the quantity effects and the money
// events in one serializable transaction.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.Invalid("line_items", "Add at least one line item.")
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

	err := s.runTx(ctx, "create sale", func(tx pgx.Tx) error {
		demand := inventory.Demand(sale.Lines)
		itemIDs := make([]string, 0, len(demand))
		for id := range demand {
			itemIDs = append(itemIDs, id)
		}
		// Fixed lock order keeps concurrent sales over the same items from
		// deadlocking.
		slices.Sort(itemIDs)

		for _, itemID := range itemIDs {
			row, err := s.getItem(ctx, tx, sale.AccountID, itemID, true)
			if err != nil {
				return fmt.Errorf("inventory item %s: %w", itemID, err)
			}
			item := row.toDomain()
			consumed, err := inventory.Sell(&item, demand[itemID])
			if err != nil {
				return err
			}
			inventory.Note(sale.Lines, itemID, consumed)
			if err := s.writeQuantities(ctx, tx, item); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO sales (id, account_id, channel, buyer, sale_date, status, fees, taxes, shipping, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $10)
		`, sale.ID, sale.AccountID, sale.Channel, sale.Buyer, sale.SaleDate, sale.Status,
			sale.Fees, sale.Taxes, sale.Shipping, now); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, line := range sale.Lines {
			batch.Queue(`
				INSERT INTO sale_line_items (
					id, sale_id, account_id, inventory_item_id, line_no, qty_sold, unit_price,
					sold_unit_cost, line_fees, line_taxes, line_shipping, listed_released, prior_status, created_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			`, line.ID, sale.ID, sale.AccountID, line.InventoryItemID, i, line.QtySold, line.UnitPrice,
				line.SoldUnitCost, line.LineFees, line.LineTaxes, line.LineShipping, line.ListedReleased, line.PriorStatus, now)
		}
		for _, e := range events {
			batch.Queue(`
				INSERT INTO money_events (
					id, account_id, inventory_item_id, sale_id, channel, event_type, amount, source, external_id, created_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, e.ID, e.AccountID, e.InventoryItemID, e.SaleID, e.Channel, e.EventType, e.Amount, e.Source, e.ExternalID, e.CreatedAt)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range len(sale.Lines) + len(events) {
			if _, err := results.Exec(); err != nil {
				if isUniqueViolation(err) {
					return store.Invalid("id", "sale already recorded")
				}
				return err
			}
		}
		return results.Close()
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, accountID string, saleID string) (*domain.Sale, error) {
	list, err := s.listSales(ctx, s.pool, squirrel.Eq{"id": saleID, "account_id": accountID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return &list[0], nil
}

func (s *Store) ListSales(ctx context.Context, accountID string) ([]domain.Sale, error) {
	return s.listSales(ctx, s.pool, squirrel.Eq{"account_id": accountID})
}

func (s *Store) ListSalesForItem(ctx context.Context, accountID string, itemID string) ([]domain.Sale, error) {
	return s.listSales(ctx, s.pool, squirrel.And{
		squirrel.Eq{"account_id": accountID},
		squirrel.Expr("id IN (SELECT sale_id FROM sale_line_items WHERE inventory_item_id = ?)", itemID),
	})
}

// DeleteSale restores the quantity every line consumed and removes the sale's
// events before the sale itself; lines go with the sale.
func (s *Store) DeleteSale(ctx context.Context, accountID string, saleID string) error {
	return s.runTx(ctx, "delete sale", func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `
			SELECT id::text FROM sales WHERE id = $1 AND account_id = $2 FOR UPDATE
		`, saleID, accountID).Scan(&locked); err != nil {
			return err
		}

		lines, err := s.linesFor(ctx, tx, []string{saleID})
		if err != nil {
			return err
		}
		restore := inventory.Releases(lines[saleID])
		itemIDs := make([]string, 0, len(restore))
		for id := range restore {
			itemIDs = append(itemIDs, id)
		}
		slices.Sort(itemIDs)

		for _, itemID := range itemIDs {
			row, err := s.getItem(ctx, tx, accountID, itemID, true)
			if err != nil {
				return err
			}
			item := row.toDomain()
			inventory.Restore(&item, restore[itemID].Qty, restore[itemID].Consumption)
			if err := s.writeQuantities(ctx, tx, item); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM money_events WHERE sale_id = $1`, saleID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM sales WHERE id = $1 AND account_id = $2`, saleID, accountID)
		return err
	})
}

// RecordMoneyEvent inserts the event unless its idempotency key exists in
// the event's account, in which case the stored row is returned. NULL
// external ids never conflict.
func (s *Store) RecordMoneyEvent(ctx context.Context, event domain.MoneyEvent) (*domain.MoneyEvent, bool, error) {
	event, err := prepareEvent(event)
	if err != nil {
		return nil, false, err
	}

	var out domain.MoneyEvent
	created := false
	err = s.runTx(ctx, "record money event", func(tx pgx.Tx) error {
		var txErr error
		out, created, txErr = s.recordEvent(ctx, tx, event)
		return txErr
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// RecordMoneyEvents records the batch in one transaction. Any rejected event
// rolls back the whole batch.
func (s *Store) RecordMoneyEvents(ctx context.Context, events []domain.MoneyEvent) (int, error) {
	prepared := make([]domain.MoneyEvent, 0, len(events))
	for i, event := range events {
		p, err := prepareEvent(event)
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", i, err)
		}
		prepared = append(prepared, p)
	}

	created := 0
	err := s.runTx(ctx, "record money events", func(tx pgx.Tx) error {
		created = 0
		for i, event := range prepared {
			_, ok, err := s.recordEvent(ctx, tx, event)
			if err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// SetCostBasis locks the item, stores unitCost and records the
// COST_BASIS_SET event in one transaction.
func (s *Store) SetCostBasis(ctx context.Context, accountID string, itemID string, unitCost decimal.Decimal, at time.Time) (*domain.InventoryItem, *domain.MoneyEvent, error) {
	var item domain.InventoryItem
	var event domain.MoneyEvent
	err := s.runTx(ctx, "set cost basis", func(tx pgx.Tx) error {
		row, err := s.getItem(ctx, tx, accountID, itemID, true)
		if err != nil {
			return err
		}
		item = row.toDomain()

		pending, err := prepareEvent(ledger.CostBasisEvent(item, unitCost, at))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_items SET unit_cost = $3, updated_at = now()
			WHERE id = $1 AND account_id = $2
		`, itemID, accountID, unitCost); err != nil {
			return err
		}
		item.UnitCost = &unitCost

		event, _, err = s.recordEvent(ctx, tx, pending)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &item, &event, nil
}

func prepareEvent(event domain.MoneyEvent) (domain.MoneyEvent, error) {
	if err := ledger.Validate(event); err != nil {
		return event, store.Invalid("event", err.Error())
	}
	if event.ID == "" {
		event.ID = xid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ExternalID != nil && *event.ExternalID == "" {
		event.ExternalID = nil
	}
	return event, nil
}

func (s *Store) recordEvent(ctx context.Context, tx pgx.Tx, event domain.MoneyEvent) (domain.MoneyEvent, bool, error) {
	if _, err := s.getItem(ctx, tx, event.AccountID, event.InventoryItemID, false); err != nil {
		return domain.MoneyEvent{}, false, fmt.Errorf("inventory item %s: %w", event.InventoryItemID, err)
	}
	if event.SaleID != nil {
		var found string
		if err := tx.QueryRow(ctx, `SELECT id::text FROM sales WHERE id = $1 AND account_id = $2`,
			*event.SaleID, event.AccountID).Scan(&found); err != nil {
			return domain.MoneyEvent{}, false, fmt.Errorf("sale %s: %w", *event.SaleID, mapErr("get sale", err))
		}
	}

	query, args, err := s.sq.Insert("money_events").
		Columns("id", "account_id", "inventory_item_id", "sale_id", "channel", "event_type", "amount", "source", "external_id", "created_at").
		Values(event.ID, event.AccountID, event.InventoryItemID, event.SaleID, event.Channel,
			event.EventType, event.Amount, event.Source, event.ExternalID, event.CreatedAt).
		Suffix("ON CONFLICT (account_id, source, external_id, event_type) DO NOTHING RETURNING " + strings.Join(eventColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.MoneyEvent{}, false, err
	}

	var out eventRow
	err = pgxscan.Get(ctx, tx, &out, query, args...)
	if err == nil {
		return out.toDomain(), true, nil
	}
	if !pgxscan.NotFound(err) || event.ExternalID == nil {
		return domain.MoneyEvent{}, false, err
	}

	query, args, err = s.sq.Select(eventColumns...).
		From("money_events").
		Where(squirrel.Eq{
			"account_id":  event.AccountID,
			"source":      event.Source,
			"external_id": *event.ExternalID,
			"event_type":  event.EventType,
		}).
		ToSql()
	if err != nil {
		return domain.MoneyEvent{}, false, err
	}
	if err := pgxscan.Get(ctx, tx, &out, query, args...); err != nil {
		return domain.MoneyEvent{}, false, err
	}
	return out.toDomain(), false, nil
}

func (s *Store) ListMoneyEventsByItem(ctx context.Context, accountID string, itemID string, order ledger.Order) ([]domain.MoneyEvent, error) {
	return s.listEvents(ctx, squirrel.Eq{"account_id": accountID, "inventory_item_id": itemID}, order)
}

func (s *Store) ListMoneyEventsBySale(ctx context.Context, accountID string, saleID string, order ledger.Order) ([]domain.MoneyEvent, error) {
	return s.listEvents(ctx, squirrel.Eq{"account_id": accountID, "sale_id": saleID}, order)
}

func (s *Store) listEvents(ctx context.Context, where squirrel.Sqlizer, order ledger.Order) ([]domain.MoneyEvent, error) {
	orderBy := []string{"created_at", "id"}
	if order == ledger.NewestFirst {
		orderBy = []string{"created_at DESC", "id DESC"}
	}
	query, args, err := s.sq.Select(eventColumns...).From("money_events").Where(where).OrderBy(orderBy...).ToSql()
	if err != nil {
		return nil, store.Persist("build list events", err)
	}

	var rows []eventRow
	if err := pgxscan.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return nil, mapErr("list money events", err)
	}
	events := make([]domain.MoneyEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toDomain())
	}
	return events, nil
}

func (s *Store) listSales(ctx context.Context, q pgxscan.Querier, where squirrel.Sqlizer) ([]domain.Sale, error) {
	query, args, err := s.sq.Select(saleColumns...).
		From("sales").
		Where(where).
		OrderBy("sale_date DESC", "created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, store.Persist("build list sales", err)
	}

	var rows []saleRow
	if err := pgxscan.Select(ctx, q, &rows, query, args...); err != nil {
		return nil, mapErr("list sales", err)
	}
	if len(rows) == 0 {
		return []domain.Sale{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	lines, err := s.linesFor(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Sale{
			ID:        r.ID,
			AccountID: r.AccountID,
			Channel:   r.Channel,
			Buyer:     r.Buyer,
			SaleDate:  r.SaleDate,
			Status:    r.Status,
			Fees:      r.Fees,
			Taxes:     r.Taxes,
			Shipping:  r.Shipping,
			Lines:     lines[r.ID],
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Store) linesFor(ctx context.Context, q pgxscan.Querier, saleIDs []string) (map[string][]domain.SaleLineItem, error) {
	query, args, err := s.sq.Select(lineColumns...).
		From("sale_line_items").
		Where(squirrel.Eq{"sale_id": saleIDs}).
		OrderBy("sale_id", "line_no").
		ToSql()
	if err != nil {
		return nil, store.Persist("build list lines", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, q, &rows, query, args...); err != nil {
		return nil, mapErr("list sale lines", err)
	}
	out := make(map[string][]domain.SaleLineItem, len(saleIDs))
	for _, r := range rows {
		out[r.SaleID] = append(out[r.SaleID], domain.SaleLineItem(r))
	}
	return out, nil
}
