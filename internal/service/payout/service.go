package payout

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/pricing"
	payoutrepo "github.com/cairodesk/backoffice/internal/repository/payout"
	"github.com/cairodesk/backoffice/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/cairodesk/backoffice/service/payout")

// Repo is the payout persistence surface.
type Repo interface {
	Create(ctx context.Context, p *entity.Payout) error
	GetByID(ctx context.Context, id int64) (*entity.Payout, error)
	ListByVenue(ctx context.Context, venueID int64) ([]entity.Payout, error)
	MarkSynced(ctx context.Context, id int64, bankTxID string) error
}

// Service manages the payout ledger.
type Service struct {
	repo   Repo
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *payoutrepo.Repository
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{repo: p.Repository, logger: p.Logger}
}

// Create records an expected payout. With secondary-currency pricing
// present, the amount is derived through the payout deduction; otherwise
// the fee is backed out of the supplied fee-inclusive total.
func (s *Service) Create(ctx context.Context, p *entity.Payout) error {
	if p == nil {
		return errorbank.BadRequest("payout payload is required")
	}
	ctx, span := serviceTracer.Start(ctx, "PayoutService.Create", trace.WithAttributes(attribute.Int64("venue.id", p.VenueID)))
	defer span.End()

	if p.VenueID <= 0 {
		return errorbank.BadRequest("venue is required")
	}
	// Secondary-currency pricing only derives a payout with a usable rate;
	// without one the supplied amount must stand on its own, or the stored
	// payout would silently come out as 0.00.
	derivable := p.OriginalAmount != nil && *p.OriginalAmount > 0 &&
		p.ExchangeRate != nil && *p.ExchangeRate > 0
	if !derivable && p.Amount <= 0 {
		return errorbank.BadRequest("payout requires a positive amount, or an original amount with an exchange rate")
	}
	p.Amount = pricing.PayoutAmount(p.OriginalAmount, p.ExchangeRate, p.Amount)
	if p.Status == "" {
		p.Status = entity.PayoutPending
	}

	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return errorbank.Internal("failed to create payout", errorbank.WithCause(err))
	}
	return nil
}

// ListByVenue returns a venue's payout ledger.
func (s *Service) ListByVenue(ctx context.Context, venueID int64) ([]entity.Payout, error) {
	ctx, span := serviceTracer.Start(ctx, "PayoutService.ListByVenue", trace.WithAttributes(attribute.Int64("venue.id", venueID)))
	defer span.End()

	payouts, err := s.repo.ListByVenue(ctx, venueID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list payouts", errorbank.WithCause(err))
	}
	return payouts, nil
}

// MarkSynced records the bank-assigned transaction id exactly once; a
// second submission attempt is rejected.
func (s *Service) MarkSynced(ctx context.Context, id int64, bankTxID string) error {
	ctx, span := serviceTracer.Start(ctx, "PayoutService.MarkSynced", trace.WithAttributes(attribute.Int64("payout.id", id)))
	defer span.End()

	if bankTxID == "" {
		return errorbank.BadRequest("bank transaction id is required")
	}
	err := s.repo.MarkSynced(ctx, id, bankTxID)
	if errors.Is(err, payoutrepo.ErrAlreadySynced) {
		return errorbank.Conflict("payout already synced to bank")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return errorbank.Internal("failed to mark payout synced", errorbank.WithCause(err))
	}
	return nil
}
