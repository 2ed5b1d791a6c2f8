package dto

import "time"

// OrderResponse represents a canonical order as exposed via transport layers.
type OrderResponse struct {
	ID                int64              `json:"id"`
	Number            string             `json:"number"`
	ExternalID        *string            `json:"external_id,omitempty"`
	CustomerName      string             `json:"customer_name"`
	VenueID           int64              `json:"venue_id"`
	StoreID           *int64             `json:"store_id,omitempty"`
	Status            string             `json:"status"`
	PaymentStatus     string             `json:"payment_status,omitempty"`
	FulfillmentStatus string             `json:"fulfillment_status,omitempty"`
	TotalAmount       float64            `json:"total_amount"`
	OriginalAmount    *float64           `json:"original_amount,omitempty"`
	ExchangeRate      *float64           `json:"exchange_rate,omitempty"`
	Currency          string             `json:"currency"`
	ProcessedAt       time.Time          `json:"processed_at"`
	ShippingCity      string             `json:"shipping_city,omitempty"`
	ShippingCountry   string             `json:"shipping_country,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	Source            string             `json:"source"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Items             []LineItemResponse `json:"items,omitempty"`
}

// LineItemResponse is a single order line as exposed via transport layers.
type LineItemResponse struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	SKU       string  `json:"sku,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// StagedRecordResponse is a review-queue entry as exposed via transport layers.
type StagedRecordResponse struct {
	ID          int64     `json:"id"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
	Origin      string    `json:"origin"`
	CreatedAt   time.Time `json:"created_at"`
	Record      RawRecord `json:"record"`
}

// PayoutResponse is a payout ledger entry as exposed via transport layers.
type PayoutResponse struct {
	ID                int64     `json:"id"`
	VenueID           int64     `json:"venue_id"`
	Amount            float64   `json:"amount"`
	OriginalAmount    *float64  `json:"original_amount,omitempty"`
	ExchangeRate      *float64  `json:"exchange_rate,omitempty"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	SyncedToBank      bool      `json:"synced_to_bank"`
	BankTransactionID *string   `json:"bank_transaction_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// BatchResultResponse reports the outcome of a bulk import or approval.
type BatchResultResponse struct {
	Imported int                  `json:"imported"`
	Created  int                  `json:"created"`
	Updated  int                  `json:"updated"`
	Errors   []BatchErrorResponse `json:"errors,omitempty"`
}

// BatchErrorResponse identifies a single failed record inside a batch.
type BatchErrorResponse struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
