package payout

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairodesk/backoffice/internal/database"
	"github.com/cairodesk/backoffice/internal/entity"
)

var repoTracer = otel.Tracer("github.com/cairodesk/backoffice/repository/payout")

// ErrNotFound is returned when a payout is missing.
var ErrNotFound = errors.New("payout not found")

// ErrAlreadySynced is returned when a payout was already submitted to the
// banking API.
var ErrAlreadySynced = errors.New("payout already synced to bank")

// Repository encapsulates read/write access for the payout ledger.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new payout.
func (r *Repository) Create(ctx context.Context, p *entity.Payout) error {
	if p == nil {
		return errors.New("nil payout")
	}
	ctx, span := repoTracer.Start(ctx, "PayoutRepository.Create", trace.WithAttributes(attribute.Int64("venue.id", p.VenueID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(p).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a payout by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Payout, error) {
	ctx, span := repoTracer.Start(ctx, "PayoutRepository.GetByID", trace.WithAttributes(attribute.Int64("payout.id", id)))
	defer span.End()

	p := new(entity.Payout)
	err := r.reader.NewSelect().Model(p).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return p, nil
}

// ListByVenue returns a venue's payouts, newest first.
func (r *Repository) ListByVenue(ctx context.Context, venueID int64) ([]entity.Payout, error) {
	ctx, span := repoTracer.Start(ctx, "PayoutRepository.ListByVenue", trace.WithAttributes(attribute.Int64("venue.id", venueID)))
	defer span.End()

	var payouts []entity.Payout
	err := r.reader.NewSelect().
		Model(&payouts).
		Where("venue_id = ?", venueID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return payouts, nil
}

// MarkSynced records the bank-assigned transaction id. The conditional
// update is the idempotency guard: a payout already flagged as synced is
// never submitted twice.
func (r *Repository) MarkSynced(ctx context.Context, id int64, bankTxID string) error {
	ctx, span := repoTracer.Start(ctx, "PayoutRepository.MarkSynced", trace.WithAttributes(attribute.Int64("payout.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Payout)(nil)).
		Where("id = ?", id).
		Where("NOT synced_to_bank").
		Set("synced_to_bank = ?", true).
		Set("bank_transaction_id = ?", bankTxID).
		Set("status = ?", entity.PayoutSubmitted).
		Set("updated_at = ?", time.Now().UTC()).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadySynced
	}
	return nil
}
