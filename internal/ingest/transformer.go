package ingest

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/pricing"
)

// AmountCalculator derives canonical monetary amounts for a record.
type AmountCalculator interface {
	Calculate(ctx context.Context, items []dto.RawLineItem, rate float64, venueID int64, nativeTotal float64) (pricing.Amounts, error)
}

// Transformer maps raw external records into canonical order drafts. It is
// pure apart from the calculator's catalog read.
type Transformer struct {
	calc   AmountCalculator
	logger *zap.Logger
}

// NewTransformer constructs a Transformer over the given calculator.
func NewTransformer(calc AmountCalculator, logger *zap.Logger) *Transformer {
	return &Transformer{calc: calc, logger: logger}
}

// Transform produces an unpersisted canonical order draft from a raw
// record. The draft carries no order number; the upsert engine assigns one
// on creation.
func (t *Transformer) Transform(ctx context.Context, raw dto.RawRecord, rate float64, venueID int64, storeID *int64) (*entity.Order, error) {
	amounts, err := t.calc.Calculate(ctx, raw.LineItems, rate, venueID, raw.Total)
	if err != nil {
		return nil, err
	}
	if amounts.Fallback && t.logger != nil {
		t.logger.Info("record priced via native-total fallback",
			zap.String("external_id", raw.ExternalID),
			zap.Int64("venue_id", venueID),
		)
	}

	draft := &entity.Order{
		CustomerName:  customerName(raw),
		VenueID:       venueID,
		StoreID:       storeID,
		Status:        deriveStatus(raw.PaymentStatus),
		PaymentStatus: raw.PaymentStatus,
		TotalAmount:   amounts.Total,
		Currency:      raw.Currency,
		ProcessedAt:   processedAt(raw),
		Tags:          entity.TagList(raw.Tags),
		Notes:         raw.Notes,
		Source:        deriveSource(raw, storeID),
		Items:         transformItems(raw.LineItems),
	}
	if id := strings.TrimSpace(raw.ExternalID); id != "" {
		draft.ExternalID = &id
	}
	if amounts.Original != nil {
		draft.OriginalAmount = amounts.Original
		r := rate
		draft.ExchangeRate = &r
	}
	draft.ShippingCity, draft.ShippingCountry = shippingLocation(raw)

	return draft, nil
}

func customerName(raw dto.RawRecord) string {
	if name := raw.Customer.DisplayName(); name != "" {
		return name
	}
	return entity.DefaultCustomerName
}

// deriveStatus closes refunded records; everything else stays open.
func deriveStatus(paymentStatus string) string {
	if strings.EqualFold(strings.TrimSpace(paymentStatus), "refunded") {
		return entity.StatusClosed
	}
	return entity.StatusOpen
}

func deriveSource(raw dto.RawRecord, storeID *int64) string {
	if storeID != nil || raw.Domain != "" || len(raw.LineItems) > 0 {
		return entity.SourceStorefront
	}
	return entity.SourceBank
}

func processedAt(raw dto.RawRecord) time.Time {
	if raw.CreatedAt.IsZero() {
		return time.Now().UTC()
	}
	return raw.CreatedAt
}

// shippingLocation resolves the record's location with address priority
// shipping, then billing, then the customer surname.
func shippingLocation(raw dto.RawRecord) (city, country string) {
	if raw.ShippingAddress.City != "" || raw.ShippingAddress.Country != "" {
		return raw.ShippingAddress.City, raw.ShippingAddress.Country
	}
	if raw.BillingAddress.City != "" || raw.BillingAddress.Country != "" {
		return raw.BillingAddress.City, raw.BillingAddress.Country
	}
	return strings.TrimSpace(raw.Customer.LastName), ""
}

func transformItems(items []dto.RawLineItem) []*entity.LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]*entity.LineItem, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, &entity.LineItem{
			Name:      item.Name,
			Quantity:  qty,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Total:     item.UnitPrice * float64(qty),
		})
	}
	return out
}
