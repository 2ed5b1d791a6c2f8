package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/messaging"
	orderrepo "github.com/cairodesk/backoffice/internal/repository/order"
)

var engineTracer = otel.Tracer("github.com/cairodesk/backoffice/ingest")

// OrderStore is the persistence surface the engine needs.
type OrderStore interface {
	Create(ctx context.Context, order *entity.Order) error
	Replace(ctx context.Context, id int64, draft *entity.Order) error
	FindByExternalID(ctx context.Context, externalID string) (*entity.Order, error)
}

// NumberSequencer assigns human-facing order numbers.
type NumberSequencer interface {
	NextOrderNumber(ctx context.Context) (string, error)
}

// Outcome reports what an upsert did.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
)

// RecordError identifies a single failed record inside a batch.
type RecordError struct {
	ID     string
	Reason string
}

// BatchResult aggregates a batch import: records succeed and fail
// independently, one failure never aborts siblings. Imported is always
// Created + Updated.
type BatchResult struct {
	Imported int
	Created  int
	Updated  int
	Errors   []RecordError
}

// OrderImportedEvent is published after a record lands in the ledger.
type OrderImportedEvent struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	ExternalID  string    `json:"external_id,omitempty"`
	VenueID     int64     `json:"venue_id"`
	TotalAmount float64   `json:"total_amount"`
	Source      string    `json:"source"`
	Updated     bool      `json:"updated"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Engine decides create-versus-replace per record, keyed on the external
// identifier, and runs batch imports with per-record error isolation.
type Engine struct {
	orders      OrderStore
	sequencer   NumberSequencer
	transformer *Transformer
	publisher   messaging.Client
	publish     bool
	logger      *zap.Logger
}

// NewEngine constructs the dedup and upsert engine.
func NewEngine(orders OrderStore, sequencer NumberSequencer, transformer *Transformer, publisher messaging.Client, publish bool, logger *zap.Logger) *Engine {
	return &Engine{
		orders:      orders,
		sequencer:   sequencer,
		transformer: transformer,
		publisher:   publisher,
		publish:     publish,
		logger:      logger,
	}
}

// Upsert persists a draft. A draft without an external id always creates;
// with one, an existing record is fully replaced, line items included. A
// create that loses a duplicate-import race retries once as an update
// instead of failing on the uniqueness constraint.
func (e *Engine) Upsert(ctx context.Context, draft *entity.Order) (Outcome, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.Upsert")
	defer span.End()

	if draft.ExternalID == nil {
		if err := e.create(ctx, draft); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create failed")
			return 0, err
		}
		return OutcomeCreated, nil
	}

	span.SetAttributes(attribute.String("order.external_id", *draft.ExternalID))

	existing, err := e.orders.FindByExternalID(ctx, *draft.ExternalID)
	switch {
	case err == nil:
		if err := e.orders.Replace(ctx, existing.ID, draft); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "replace failed")
			return 0, err
		}
		draft.ID = existing.ID
		draft.Number = existing.Number
		return OutcomeUpdated, nil
	case errors.Is(err, orderrepo.ErrNotFound):
		// fall through to create
	default:
		span.RecordError(err)
		return 0, err
	}

	if err := e.create(ctx, draft); err == nil {
		return OutcomeCreated, nil
	} else if !errors.Is(err, orderrepo.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return 0, err
	}

	// Lost a duplicate-import race: another writer created this external id
	// between our lookup and insert. Resolve as an update.
	existing, err = e.orders.FindByExternalID(ctx, *draft.ExternalID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if err := e.orders.Replace(ctx, existing.ID, draft); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace after conflict failed")
		return 0, err
	}
	draft.ID = existing.ID
	draft.Number = existing.Number
	return OutcomeUpdated, nil
}

// maxNumberAttempts bounds how often a create re-sequences after losing
// a number to a concurrent writer.
const maxNumberAttempts = 3

// create assigns the next order number and inserts the draft. The locked
// read behind the sequencer releases before the insert runs, so two
// concurrent creates can be handed the same number; the unique constraint
// rejects the loser, which re-sequences against the committed latest and
// tries again. No two persisted orders ever share a number.
func (e *Engine) create(ctx context.Context, draft *entity.Order) error {
	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := e.sequencer.NextOrderNumber(ctx)
		if err != nil {
			return fmt.Errorf("assign order number: %w", err)
		}
		draft.Number = number
		err = e.orders.Create(ctx, draft)
		if !errors.Is(err, orderrepo.ErrNumberConflict) {
			return err
		}
		lastErr = err
		if e.logger != nil {
			e.logger.Warn("order number taken, resequencing",
				zap.String("number", number),
				zap.Int("attempt", attempt),
			)
		}
	}
	return fmt.Errorf("assign order number: %w", lastErr)
}

// ImportBatch transforms and upserts raw records independently, collecting
// per-record errors and a success count.
func (e *Engine) ImportBatch(ctx context.Context, raws []dto.RawRecord, rate float64, venueID int64, storeID *int64) BatchResult {
	ctx, span := engineTracer.Start(ctx, "Engine.ImportBatch", trace.WithAttributes(
		attribute.Int("records.count", len(raws)),
		attribute.Int64("venue.id", venueID),
	))
	defer span.End()

	var result BatchResult
	for _, raw := range raws {
		outcome, err := e.importOne(ctx, raw, rate, venueID, storeID)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{ID: raw.ExternalID, Reason: err.Error()})
			if e.logger != nil {
				e.logger.Warn("record import failed",
					zap.String("external_id", raw.ExternalID),
					zap.Error(err),
				)
			}
			continue
		}
		result.Imported++
		if outcome == OutcomeUpdated {
			result.Updated++
		} else {
			result.Created++
		}
	}
	span.SetAttributes(attribute.Int("records.imported", result.Imported))
	return result
}

func (e *Engine) importOne(ctx context.Context, raw dto.RawRecord, rate float64, venueID int64, storeID *int64) (Outcome, error) {
	draft, err := e.transformer.Transform(ctx, raw, rate, venueID, storeID)
	if err != nil {
		return 0, err
	}
	outcome, err := e.Upsert(ctx, draft)
	if err != nil {
		return 0, err
	}
	e.publishImported(ctx, draft, outcome)
	return outcome, nil
}

func (e *Engine) publishImported(ctx context.Context, order *entity.Order, outcome Outcome) {
	if !e.publish || e.publisher == nil {
		return
	}
	event := OrderImportedEvent{
		ID:          order.ID,
		Number:      order.Number,
		VenueID:     order.VenueID,
		TotalAmount: order.TotalAmount,
		Source:      order.Source,
		Updated:     outcome == OutcomeUpdated,
		ProcessedAt: order.ProcessedAt,
	}
	if order.ExternalID != nil {
		event.ExternalID = *order.ExternalID
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("marshal order imported", zap.Error(err))
		}
		return
	}
	if err := e.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		if e.logger != nil {
			e.logger.Error("publish order imported", zap.Error(err))
		}
	}
}
