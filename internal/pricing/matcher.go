package pricing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
)

var matcherTracer = otel.Tracer("github.com/cairodesk/backoffice/pricing")

// Catalog exposes the read-only product lookup the matcher needs.
type Catalog interface {
	ActiveByVenue(ctx context.Context, venueID int64) ([]entity.Product, error)
}

// UnmatchedError reports line items no catalog tier could resolve. The
// whole match fails as a unit; partial sums would silently under-price.
type UnmatchedError struct {
	Items []string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("no catalog match for %d line item(s): %s", len(e.Items), strings.Join(e.Items, "; "))
}

// Matcher resolves raw line items against a venue's active product catalog
// using tiered lookup: variant id, then SKU, then name.
type Matcher struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewMatcher constructs a Matcher over the given catalog.
func NewMatcher(catalog Catalog, logger *zap.Logger) *Matcher {
	return &Matcher{catalog: catalog, logger: logger}
}

// MatchTotal resolves every line item and returns the summed catalog price
// in the secondary currency. If any single item fails all three tiers, or
// the venue has no active products, the whole computation fails with
// *UnmatchedError.
func (m *Matcher) MatchTotal(ctx context.Context, items []dto.RawLineItem, venueID int64) (float64, error) {
	ctx, span := matcherTracer.Start(ctx, "Matcher.MatchTotal")
	span.SetAttributes(
		attribute.Int64("venue.id", venueID),
		attribute.Int("items.count", len(items)),
	)
	defer span.End()

	products, err := m.catalog.ActiveByVenue(ctx, venueID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	if len(products) == 0 {
		return 0, &UnmatchedError{Items: describeAll(items)}
	}

	byVariant := make(map[string]float64, len(products))
	bySKU := make(map[string]float64, len(products))
	byName := make(map[string]float64, len(products))
	for _, p := range products {
		if key := strings.TrimSpace(p.ExternalID); key != "" {
			byVariant[key] = p.Price
		}
		if key := strings.TrimSpace(p.SKU); key != "" {
			bySKU[key] = p.Price
		}
		if key := strings.ToLower(strings.TrimSpace(p.Name)); key != "" {
			byName[key] = p.Price
		}
	}

	var sum float64
	var unmatched []string
	for _, item := range items {
		price, ok := lookup(item, byVariant, bySKU, byName)
		if !ok {
			unmatched = append(unmatched, describe(item))
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		sum += price * float64(qty)
	}

	if len(unmatched) > 0 {
		return 0, &UnmatchedError{Items: unmatched}
	}
	return sum, nil
}

// lookup applies the matching tiers in priority order; first hit wins.
func lookup(item dto.RawLineItem, byVariant, bySKU, byName map[string]float64) (float64, bool) {
	if key := strings.TrimSpace(item.VariantID); key != "" {
		if price, ok := byVariant[key]; ok {
			return price, true
		}
	}
	if key := strings.TrimSpace(item.SKU); key != "" {
		if price, ok := bySKU[key]; ok {
			return price, true
		}
	}
	if key := strings.ToLower(strings.TrimSpace(item.Name)); key != "" {
		if price, ok := byName[key]; ok {
			return price, true
		}
	}
	return 0, false
}

func describe(item dto.RawLineItem) string {
	if sku := strings.TrimSpace(item.SKU); sku != "" {
		return fmt.Sprintf("%s (sku %s)", item.Name, sku)
	}
	return item.Name
}

func describeAll(items []dto.RawLineItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, describe(item))
	}
	return out
}
