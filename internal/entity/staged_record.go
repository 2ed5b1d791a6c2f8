package entity

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// StagedRecord holds a fetched-but-unapproved external record. The raw
// payload is stored verbatim; the denormalized columns exist only for
// filtering the review queue.
type StagedRecord struct {
	bun.BaseModel `bun:"table:staged_records"`

	ID          int64           `bun:",pk,autoincrement"`
	Payload     json.RawMessage `bun:"payload,type:jsonb,notnull"`
	TotalAmount float64         `bun:"total_amount"`
	Currency    string          `bun:"currency"`
	Origin      string          `bun:"origin"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
