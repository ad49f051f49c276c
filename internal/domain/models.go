package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	ItemStatusDraft    = "draft"
	ItemStatusReady    = "ready"
	ItemStatusListed   = "listed"
	ItemStatusSold     = "sold"
	ItemStatusArchived = "archived"
)

const (
	ChannelEbay      = "EBAY"
	ChannelOffline   = "OFFLINE"
	ChannelWholesale = "WHOLESALE"
)

const (
	SaleStatusPaid          = "paid"
	SaleStatusPending       = "pending"
	SaleStatusRefunded      = "refunded"
	SaleStatusCancelled     = "cancelled"
	SaleStatusPartialRefund = "partial_refund"
)

type Account struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Plan      string    `json:"plan" db:"plan"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership links a user to an account. A user may hold memberships in
// several accounts; the account is always chosen explicitly per request.
type Membership struct {
	AccountID string    `json:"account_id" db:"account_id"`
	Username  string    `json:"username" db:"username"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AccountMembership struct {
	Account Account `json:"account"`
	Role    string  `json:"role"`
}

type UserAccount struct {
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Actor struct {
	Username string
}

type InventoryItem struct {
	ID            string            `json:"id"`
	AccountID     string            `json:"account_id"`
	Title         string            `json:"title"`
	SKU           string            `json:"sku,omitempty"`
	Status        string            `json:"status"`
	QtyOnHand     int               `json:"qty_on_hand"`
	QtyListed     int               `json:"qty_listed"`
	QtySold       int               `json:"qty_sold"`
	UnitCost      *decimal.Decimal  `json:"unit_cost"`
	ListPrice     *decimal.Decimal  `json:"list_price"`
	ItemSpecifics map[string]string `json:"item_specifics,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type Sale struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Channel   string          `json:"channel"`
	Buyer     *string         `json:"buyer"`
	SaleDate  string          `json:"sale_date"`
	Status    string          `json:"status"`
	Fees      decimal.Decimal `json:"fees"`
	Taxes     decimal.Decimal `json:"taxes"`
	Shipping  decimal.Decimal `json:"shipping"`
	Lines     []SaleLineItem  `json:"line_items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type SaleLineItem struct {
	ID              string           `json:"id"`
	SaleID          string           `json:"sale_id"`
	AccountID       string           `json:"account_id"`
	InventoryItemID string           `json:"inventory_item_id"`
	QtySold         int              `json:"qty_sold"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	SoldUnitCost    *decimal.Decimal `json:"sold_unit_cost"`
	LineFees        decimal.Decimal  `json:"line_fees"`
	LineTaxes       decimal.Decimal  `json:"line_taxes"`
	LineShipping    decimal.Decimal  `json:"line_shipping"`
	// ListedReleased and PriorStatus record what the sale took from the
	// item besides qty_sold. Only the first line of each item carries them.
	ListedReleased  int              `json:"-"`
	PriorStatus     *string          `json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
}

// MoneyEvent is an immutable financial fact. Amount is a magnitude for every
// event type except ADJUSTMENT; the sign is applied by the ledger package.
type MoneyEvent struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"account_id"`
	InventoryItemID string          `json:"inventory_item_id"`
	SaleID          *string         `json:"sale_id"`
	Channel         *string         `json:"channel"`
	EventType       string          `json:"event_type"`
	Amount          decimal.Decimal `json:"amount"`
	Source          string          `json:"source"`
	ExternalID      *string         `json:"external_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ItemTotals struct {
	ItemID      string           `json:"item_id"`
	Gross       decimal.Decimal  `json:"gross"`
	Refunds     decimal.Decimal  `json:"refunds"`
	Fees        decimal.Decimal  `json:"fees"`
	Taxes       decimal.Decimal  `json:"taxes"`
	Shipping    decimal.Decimal  `json:"shipping"`
	Adjustments decimal.Decimal  `json:"adjustments"`
	Net         decimal.Decimal  `json:"net"`
	Cost        decimal.Decimal  `json:"cost"`
	CostBasis   decimal.Decimal  `json:"cost_basis"`
	Profit      decimal.Decimal  `json:"profit"`
	ROI         *decimal.Decimal `json:"roi"`
}

type SaleTotals struct {
	SaleID   string           `json:"sale_id"`
	Gross    decimal.Decimal  `json:"gross"`
	Fees     decimal.Decimal  `json:"fees"`
	Taxes    decimal.Decimal  `json:"taxes"`
	Shipping decimal.Decimal  `json:"shipping"`
	Net      decimal.Decimal  `json:"net"`
	Cost     decimal.Decimal  `json:"cost"`
	Profit   decimal.Decimal  `json:"profit"`
	Margin   *decimal.Decimal `json:"margin"`
}

type DayRevenue struct {
	Date string          `json:"date"`
	Net  decimal.Decimal `json:"net"`
}

type DashboardMetrics struct {
	Revenue7d            decimal.Decimal  `json:"revenue_7d"`
	Revenue30d           decimal.Decimal  `json:"revenue_30d"`
	NetProfit7d          decimal.Decimal  `json:"net_profit_7d"`
	NetProfit30d         decimal.Decimal  `json:"net_profit_30d"`
	ProfitMarginPct      *decimal.Decimal `json:"profit_margin_pct"`
	Cogs30d              decimal.Decimal  `json:"cogs_30d"`
	AvgProfitPerItem     *decimal.Decimal `json:"avg_profit_per_item"`
	ActiveInventoryCount int              `json:"active_inventory_count"`
	RevenueByDay         []DayRevenue     `json:"revenue_by_day"`
}

type ItemSaleHistoryEntry struct {
	SaleID    string          `json:"sale_id"`
	SaleDate  string          `json:"sale_date"`
	Channel   string          `json:"channel"`
	Status    string          `json:"status"`
	QtySold   int             `json:"qty_sold"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type ItemCreateRequest struct {
	Title         string           `json:"title" validate:"required,max=200"`
	SKU           string           `json:"sku" validate:"max=64"`
	Status        string           `json:"status" validate:"omitempty,oneof=draft ready listed sold archived"`
	QtyOnHand     int              `json:"qty_on_hand" validate:"min=0"`
	QtyListed     int              `json:"qty_listed" validate:"min=0"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	ListPrice     *decimal.Decimal `json:"list_price"`
	ItemSpecifics string           `json:"item_specifics"`
	Tags          string           `json:"tags"`
}

type ItemUpdateRequest struct {
	Title     *string          `json:"title,omitempty"`
	Status    *string          `json:"status,omitempty"`
	QtyOnHand *int             `json:"qty_on_hand,omitempty"`
	QtyListed *int             `json:"qty_listed,omitempty"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	ListPrice *decimal.Decimal `json:"list_price,omitempty"`
	Tags      *string          `json:"tags,omitempty"`
}

type AcquireRequest struct {
	Qty int `json:"qty" validate:"min=1"`
}

type CostBasisRequest struct {
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type SaleLineRequest struct {
	InventoryItemID string           `json:"inventory_item_id" validate:"required"`
	QtySold         int              `json:"qty_sold"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	SoldUnitCost    *decimal.Decimal `json:"sold_unit_cost"`
	LineFees        decimal.Decimal  `json:"line_fees"`
	LineTaxes       decimal.Decimal  `json:"line_taxes"`
	LineShipping    decimal.Decimal  `json:"line_shipping"`
}

type SaleCreateRequest struct {
	Channel   string            `json:"channel" validate:"required,oneof=EBAY OFFLINE WHOLESALE"`
	Buyer     *string           `json:"buyer"`
	SaleDate  string            `json:"sale_date" validate:"required,datetime=2006-01-02"`
	Status    string            `json:"status" validate:"omitempty,oneof=paid pending refunded cancelled partial_refund"`
	Fees      decimal.Decimal   `json:"fees"`
	Taxes     decimal.Decimal   `json:"taxes"`
	Shipping  decimal.Decimal   `json:"shipping"`
	LineItems []SaleLineRequest `json:"line_items" validate:"dive"`
}

type SaleCreateResponse struct {
	OK     bool   `json:"ok"`
	SaleID string `json:"sale_id"`
}

type SaleDetail struct {
	Sale   Sale       `json:"sale"`
	Totals SaleTotals `json:"totals"`
}

type MoneyEventImport struct {
	InventoryItemID string          `json:"inventory_item_id" validate:"required"`
	SaleID          *string         `json:"sale_id"`
	Channel         *string         `json:"channel"`
	EventType       string          `json:"event_type" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Source          string          `json:"source" validate:"required,max=64"`
	ExternalID      *string         `json:"external_id"`
}

type MoneyEventImportRequest struct {
	Events []MoneyEventImport `json:"events" validate:"required,min=1,max=500,dive"`
}

type MoneyEventImportResponse struct {
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
}

type MemberAddRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin member"`
}
