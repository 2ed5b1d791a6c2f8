package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Payout statuses.
const (
	PayoutPending   = "pending"
	PayoutSubmitted = "submitted"
	PayoutSettled   = "settled"
)

// Payout represents outbound money owed to a venue. SyncedToBank plus the
// bank-assigned transaction id form the idempotency pair that prevents
// double-submission to the banking API.
type Payout struct {
	bun.BaseModel `bun:"table:payouts"`

	ID                int64     `bun:",pk,autoincrement"`
	VenueID           int64     `bun:"venue_id,notnull"`
	Amount            float64   `bun:"amount,notnull"`
	OriginalAmount    *float64  `bun:"original_amount,nullzero"`
	ExchangeRate      *float64  `bun:"exchange_rate,nullzero"`
	Currency          string    `bun:"currency"`
	Status            string    `bun:"status,notnull,default:'pending'"`
	SyncedToBank      bool      `bun:"synced_to_bank,notnull,default:false"`
	BankTransactionID *string   `bun:"bank_transaction_id,nullzero"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero"`
}
