package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order sources distinguish how a record entered the ledger.
const (
	SourceManual     = "manual"
	SourceStorefront = "storefront"
	SourceBank       = "bank"
)

// Order statuses derived from the native payment state.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// DefaultCustomerName is the sentinel used when a record carries no party name.
const DefaultCustomerName = "Unknown customer"

// Order is the canonical, venue-owned representation of a sale, independent
// of its origin (manual entry, storefront sync, approved staging record).
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                int64       `bun:",pk,autoincrement"`
	Number            string      `bun:"number,unique"`
	ExternalID        *string     `bun:"external_id,unique,nullzero"`
	CustomerName      string      `bun:"customer_name,notnull"`
	VenueID           int64       `bun:"venue_id,notnull"`
	StoreID           *int64      `bun:"store_id,nullzero"`
	Status            string      `bun:"status"`
	PaymentStatus     string      `bun:"payment_status"`
	FulfillmentStatus string      `bun:"fulfillment_status"`
	TotalAmount       float64     `bun:"total_amount"`
	OriginalAmount    *float64    `bun:"original_amount,nullzero"`
	ExchangeRate      *float64    `bun:"exchange_rate,nullzero"`
	Currency          string      `bun:"currency"`
	ProcessedAt       time.Time   `bun:"processed_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	ShippingCity      string      `bun:"shipping_city"`
	ShippingCountry   string      `bun:"shipping_country"`
	Tags              TagList     `bun:"tags"`
	Notes             string      `bun:"notes"`
	Source            string      `bun:"source,notnull,default:'manual'"`
	CreatedBy         *int64      `bun:"created_by,nullzero"`
	CreatedAt         time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time   `bun:"updated_at,nullzero"`
	Items             []*LineItem `bun:"rel:has-many,join:id=order_id"`
}

// LineItem belongs exclusively to its order and is replaced wholesale on
// re-sync; it has no stable identity across sync passes.
type LineItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        int64   `bun:",pk,autoincrement"`
	OrderID   int64   `bun:"order_id,notnull"`
	Name      string  `bun:"name,notnull"`
	Quantity  int     `bun:"quantity,notnull"`
	SKU       string  `bun:"sku"`
	UnitPrice float64 `bun:"unit_price"`
	Total     float64 `bun:"total"`
}
