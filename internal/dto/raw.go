package dto

import (
	"encoding/json"
	"strings"
	"time"
)

// RawRecord is an immutable payload from an external source system: a
// storefront order or a bank transaction. Field names follow the feed
// payloads, not the internal model.
type RawRecord struct {
	ExternalID      string         `json:"external_id"`
	Total           float64        `json:"total"`
	Currency        string         `json:"currency"`
	CreatedAt       time.Time      `json:"created_at"`
	PaymentStatus   string         `json:"payment_status"`
	Direction       string         `json:"direction,omitempty"`
	Domain          string         `json:"domain,omitempty"`
	Tags            RawTags        `json:"tags,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	LineItems       []RawLineItem  `json:"line_items,omitempty"`
	Customer        RawParty       `json:"customer"`
	ShippingAddress RawAddress     `json:"shipping_address"`
	BillingAddress  RawAddress     `json:"billing_address"`
}

// RawLineItem is a single line of a raw storefront order.
type RawLineItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	SKU       string  `json:"sku,omitempty"`
	VariantID string  `json:"variant_id,omitempty"`
	UnitPrice float64 `json:"unit_price"`
}

// RawParty identifies the counterparty on a raw record.
type RawParty struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Name      string `json:"name,omitempty"`
}

// RawAddress is a partial address as supplied by the source system.
type RawAddress struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// RawTags accepts either a delimited string or a JSON array, the two shapes
// the source systems emit.
type RawTags []string

// UnmarshalJSON normalizes both tag encodings into an ordered list.
func (t *RawTags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = trimTags(list)
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*t = trimTags(strings.Split(joined, ","))
	return nil
}

func trimTags(in []string) RawTags {
	out := make(RawTags, 0, len(in))
	for _, tag := range in {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DisplayName resolves the counterparty name, preferring the full name field.
func (p RawParty) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	full := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	return full
}
