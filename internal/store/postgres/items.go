package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jayhereforshort/haulharbor/internal/domain"
	"github.com/jayhereforshort/haulharbor/internal/inventory"
	"github.com/jayhereforshort/haulharbor/internal/store"
	"github.com/jayhereforshort/haulharbor/internal/xid"
)

var itemColumns = []string{
	"id::text AS id", "account_id::text AS account_id", "title", "coalesce(sku, '') AS sku", "status",
	"qty_on_hand", "qty_listed", "qty_sold", "unit_cost", "list_price",
	"item_specifics", "tags", "created_at", "updated_at",
}

type itemRow struct {
	ID            string            `db:"id"`
	AccountID     string            `db:"account_id"`
	Title         string            `db:"title"`
	SKU           string            `db:"sku"`
	Status        string            `db:"status"`
	QtyOnHand     int               `db:"qty_on_hand"`
	QtyListed     int               `db:"qty_listed"`
	QtySold       int               `db:"qty_sold"`
	UnitCost      *decimal.Decimal  `db:"unit_cost"`
	ListPrice     *decimal.Decimal  `db:"list_price"`
	ItemSpecifics map[string]string `db:"item_specifics"`
	Tags          []string          `db:"tags"`
	CreatedAt     time.Time         `db:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at"`
}

func (r itemRow) toDomain() domain.InventoryItem {
	item := domain.InventoryItem{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Title:         r.Title,
		SKU:           r.SKU,
		Status:        r.Status,
		QtyOnHand:     r.QtyOnHand,
		QtyListed:     r.QtyListed,
		QtySold:       r.QtySold,
		UnitCost:      r.UnitCost,
		ListPrice:     r.ListPrice,
		ItemSpecifics: r.ItemSpecifics,
		Tags:          r.Tags,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if len(item.ItemSpecifics) == 0 {
		item.ItemSpecifics = nil
	}
	if len(item.Tags) == 0 {
		item.Tags = nil
	}
	return item
}

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.ID == "" {
		item.ID = xid.New()
	}
	if item.Status == "" {
		item.Status = domain.ItemStatusDraft
	}
	specifics := item.ItemSpecifics
	if specifics == nil {
		specifics = map[string]string{}
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	now := time.Now().UTC()

	query, args, err := s.sq.Insert("inventory_items").
		Columns("id", "account_id", "title", "sku", "status", "qty_on_hand", "qty_listed", "qty_sold",
			"unit_cost", "list_price", "item_specifics", "tags", "created_at", "updated_at").
		Values(item.ID, item.AccountID, item.Title, nullIfEmpty(item.SKU), item.Status, item.QtyOnHand, item.QtyListed, 0,
			item.UnitCost, item.ListPrice, specifics, tags, now, now).
		Suffix("RETURNING " + strings.Join(itemColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, store.Persist("build create item", err)
	}

	var row itemRow
	if err := pgxscan.Get(ctx, s.pool, &row, query, args...); err != nil {
		return nil, mapErr("create item", err)
	}
	created := row.toDomain()
	return &created, nil
}

func (s *Store) GetItem(ctx context.Context, accountID string, itemID string) (*domain.InventoryItem, error) {
	row, err := s.getItem(ctx, s.pool, accountID, itemID, false)
	if err != nil {
		return nil, err
	}
	item := row.toDomain()
	return &item, nil
}

func (s *Store) ListItems(ctx context.Context, accountID string, statuses []string) ([]domain.InventoryItem, error) {
	q := s.sq.Select(itemColumns...).
		From("inventory_items").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at DESC", "id DESC")
	if statuses != nil {
		q = q.Where(squirrel.Eq{"status": statuses})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, store.Persist("build list items", err)
	}

	var rows []itemRow
	if err := pgxscan.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return nil, mapErr("list items", err)
	}
	items := make([]domain.InventoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toDomain())
	}
	return items, nil
}

// UpdateItem replaces the editable fields. qty_sold is owned by sales and is
// left untouched.
func (s *Store) UpdateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	specifics := item.ItemSpecifics
	if specifics == nil {
		specifics = map[string]string{}
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}

	query, args, err := s.sq.Update("inventory_items").
		SetMap(map[string]any{
			"title":          item.Title,
			"sku":            nullIfEmpty(item.SKU),
			"status":         item.Status,
			"qty_on_hand":    item.QtyOnHand,
			"qty_listed":     item.QtyListed,
			"unit_cost":      item.UnitCost,
			"list_price":     item.ListPrice,
			"item_specifics": specifics,
			"tags":           tags,
			"updated_at":     time.Now().UTC(),
		}).
		Where(squirrel.Eq{"id": item.ID, "account_id": item.AccountID}).
		Suffix("RETURNING " + strings.Join(itemColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, store.Persist("build update item", err)
	}

	var row itemRow
	if err := pgxscan.Get(ctx, s.pool, &row, query, args...); err != nil {
		return nil, mapErr("update item", err)
	}
	updated := row.toDomain()
	return &updated, nil
}

func (s *Store) AcquireStock(ctx context.Context, accountID string, itemID string, qty int) (*domain.InventoryItem, error) {
	var out domain.InventoryItem
	err := s.runTx(ctx, "acquire stock", func(tx pgx.Tx) error {
		row, err := s.getItem(ctx, tx, accountID, itemID, true)
		if err != nil {
			return err
		}
		item := row.toDomain()
		if err := inventory.Acquire(&item, qty); err != nil {
			return err
		}
		if err := s.writeQuantities(ctx, tx, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CountItems(ctx context.Context, accountID string, statuses []string) (int, error) {
	q := s.sq.Select("count(*)").From("inventory_items").Where(squirrel.Eq{"account_id": accountID})
	if statuses != nil {
		q = q.Where(squirrel.Eq{"status": statuses})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, store.Persist("build count items", err)
	}
	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, mapErr("count items", err)
	}
	return count, nil
}

func (s *Store) getItem(ctx context.Context, q pgxscan.Querier, accountID string, itemID string, forUpdate bool) (*itemRow, error) {
	b := s.sq.Select(itemColumns...).
		From("inventory_items").
		Where(squirrel.Eq{"id": itemID, "account_id": accountID})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, store.Persist("build get item", err)
	}

	var row itemRow
	if err := pgxscan.Get(ctx, q, &row, query, args...); err != nil {
		return nil, mapErr("get item", err)
	}
	return &row, nil
}

func (s *Store) writeQuantities(ctx context.Context, tx pgx.Tx, item domain.InventoryItem) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory_items
		SET qty_on_hand = $3, qty_listed = $4, qty_sold = $5, status = $6, updated_at = now()
		WHERE id = $1 AND account_id = $2
	`, item.ID, item.AccountID, item.QtyOnHand, item.QtyListed, item.QtySold, item.Status)
	return err
}
