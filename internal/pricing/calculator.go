package pricing

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
)

// Fixed multipliers applied uniformly across the ledger: a 3.5% processing
// fee on settlement totals and a 1.75% deduction on expected payouts.
const (
	feeMultiplier    = 1.035
	payoutMultiplier = 0.9825
)

// ProductMatcher abstracts the catalog matcher for the calculator.
type ProductMatcher interface {
	MatchTotal(ctx context.Context, items []dto.RawLineItem, venueID int64) (float64, error)
}

// Amounts carries the derived monetary fields for a canonical order.
// Original and Base are nil when no secondary-currency pricing could be
// derived; Total then carries the raw native total unmodified.
type Amounts struct {
	Original *float64
	Base     *float64
	Total    float64
	Fallback bool
}

// Calculator derives canonical amounts from matched or fallback pricing.
type Calculator struct {
	matcher ProductMatcher
	logger  *zap.Logger
}

// NewCalculator constructs a Calculator over the given matcher.
func NewCalculator(matcher ProductMatcher, logger *zap.Logger) *Calculator {
	return &Calculator{matcher: matcher, logger: logger}
}

// Calculate derives the secondary-currency original amount, the primary
// base amount, and the fee-inclusive total. Catalog matching failures and
// non-positive rates take the fallback path, deriving the original amount
// from the source's own native total. Rounding happens once, when Total is
// finalized. Only infrastructure failures produce an error.
func (c *Calculator) Calculate(ctx context.Context, items []dto.RawLineItem, rate float64, venueID int64, nativeTotal float64) (Amounts, error) {
	if rate <= 0 {
		// No usable rate: no secondary-currency pricing can be derived.
		return Amounts{Total: nativeTotal, Fallback: true}, nil
	}

	original := nativeTotal * rate
	fallback := true

	matched, err := c.matcher.MatchTotal(ctx, items, venueID)
	switch {
	case err == nil:
		original = matched
		fallback = false
	case isUnmatched(err):
		// Catalog drift: the order keeps its native total, priced without
		// per-SKU accuracy. Operators need to see this.
		if c.logger != nil {
			c.logger.Warn("product matching failed; using native-total fallback",
				zap.Int64("venue_id", venueID),
				zap.Float64("native_total", nativeTotal),
				zap.Error(err),
			)
		}
	default:
		return Amounts{}, err
	}

	base := original / rate
	total := FeeInclusive(base)

	return Amounts{
		Original: &original,
		Base:     &base,
		Total:    total,
		Fallback: fallback,
	}, nil
}

// PayoutAmount derives the expected payout. With secondary-currency pricing
// present it applies the payout deduction directly; otherwise it backs the
// processing fee out of the fee-inclusive total.
func PayoutAmount(original, rate *float64, total float64) float64 {
	if original != nil && rate != nil && *rate > 0 {
		return Round2(*original / *rate * payoutMultiplier)
	}
	return Round2(total / feeMultiplier)
}

// FeeInclusive applies the processing fee to a base amount and rounds.
func FeeInclusive(base float64) float64 {
	return Round2(base * feeMultiplier)
}

// Round2 rounds a monetary value to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isUnmatched(err error) bool {
	var unmatched *UnmatchedError
	return errors.As(err, &unmatched)
}
