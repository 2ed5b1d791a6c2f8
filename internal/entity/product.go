package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Product is a venue-scoped catalog entry priced in the secondary currency.
// The ingestion pipeline only ever reads products; catalog maintenance
// happens elsewhere.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID         int64     `bun:",pk,autoincrement"`
	VenueID    int64     `bun:"venue_id,notnull"`
	Name       string    `bun:"name,notnull"`
	SKU        string    `bun:"sku"`
	ExternalID string    `bun:"external_id"`
	Price      float64   `bun:"price,notnull"`
	Active     bool      `bun:"active,notnull,default:true"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero"`
}

// Venue owns orders, products, and payouts. A venue with orders cannot be
// deleted; that constraint lives in the persistence layer.
type Venue struct {
	bun.BaseModel `bun:"table:venues"`

	ID        int64     `bun:",pk,autoincrement"`
	Name      string    `bun:"name,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Store is an external storefront account, resolved by domain when staged
// records are approved.
type Store struct {
	bun.BaseModel `bun:"table:stores"`

	ID        int64     `bun:",pk,autoincrement"`
	Domain    string    `bun:"domain,notnull,unique"`
	Name      string    `bun:"name"`
	VenueID   int64     `bun:"venue_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
