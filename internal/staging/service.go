package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/ingest"
	stagingrepo "github.com/cairodesk/backoffice/internal/repository/staging"
	storerepo "github.com/cairodesk/backoffice/internal/repository/store"
	"github.com/cairodesk/backoffice/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/cairodesk/backoffice/staging")

// Filter narrows queue listings.
type Filter = stagingrepo.Filter

// StagedStore is the persistence surface for the review queue.
type StagedStore interface {
	Insert(ctx context.Context, records []*entity.StagedRecord) error
	List(ctx context.Context, filter stagingrepo.Filter) ([]entity.StagedRecord, error)
	GetByIDs(ctx context.Context, ids []int64) ([]entity.StagedRecord, error)
	Delete(ctx context.Context, ids []int64) error
}

// StoreResolver maps a storefront domain to its configured store.
type StoreResolver interface {
	FindByDomain(ctx context.Context, domain string) (*entity.Store, error)
}

// RateSource supplies the current exchange rate for approvals.
type RateSource interface {
	CurrentRate(ctx context.Context) (float64, error)
}

// Importer promotes raw records into the canonical ledger.
type Importer interface {
	ImportBatch(ctx context.Context, raws []dto.RawRecord, rate float64, venueID int64, storeID *int64) ingest.BatchResult
}

// Item pairs a staged row with its decoded raw payload.
type Item struct {
	Record entity.StagedRecord
	Raw    dto.RawRecord
}

// Service holds fetched external records for human review ahead of
// promotion into the ledger.
type Service struct {
	staged   StagedStore
	stores   StoreResolver
	rates    RateSource
	importer Importer
	logger   *zap.Logger
}

// NewService constructs the staging queue service.
func NewService(staged StagedStore, stores StoreResolver, rates RateSource, importer Importer, logger *zap.Logger) *Service {
	return &Service{
		staged:   staged,
		stores:   stores,
		rates:    rates,
		importer: importer,
		logger:   logger,
	}
}

// Enqueue stages raw records for review, denormalizing the filter fields.
func (s *Service) Enqueue(ctx context.Context, raws []dto.RawRecord, origin string) error {
	ctx, span := serviceTracer.Start(ctx, "StagingService.Enqueue", trace.WithAttributes(attribute.Int("records.count", len(raws))))
	defer span.End()

	records := make([]*entity.StagedRecord, 0, len(raws))
	for _, raw := range raws {
		payload, err := json.Marshal(raw)
		if err != nil {
			span.RecordError(err)
			return errorbank.Internal("encode staged record", errorbank.WithCause(err))
		}
		recordOrigin := raw.Domain
		if recordOrigin == "" {
			recordOrigin = origin
		}
		records = append(records, &entity.StagedRecord{
			Payload:     payload,
			TotalAmount: raw.Total,
			Currency:    raw.Currency,
			Origin:      recordOrigin,
		})
	}
	if err := s.staged.Insert(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return errorbank.Internal("stage records", errorbank.WithCause(err))
	}
	return nil
}

// List returns the queue contents matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Item, error) {
	ctx, span := serviceTracer.Start(ctx, "StagingService.List")
	defer span.End()

	records, err := s.staged.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("list staged records", errorbank.WithCause(err))
	}

	items := make([]Item, 0, len(records))
	for _, record := range records {
		var raw dto.RawRecord
		if err := json.Unmarshal(record.Payload, &raw); err != nil {
			if s.logger != nil {
				s.logger.Warn("undecodable staged payload", zap.Int64("id", record.ID), zap.Error(err))
			}
			continue
		}
		items = append(items, Item{Record: record, Raw: raw})
	}
	return items, nil
}

// Approve promotes the given staged records. Only records that imported
// successfully leave the queue; failures stay staged for retry or
// inspection, reported in the batch result.
func (s *Service) Approve(ctx context.Context, ids []int64, venueID int64) (ingest.BatchResult, error) {
	ctx, span := serviceTracer.Start(ctx, "StagingService.Approve", trace.WithAttributes(
		attribute.Int("ids.count", len(ids)),
		attribute.Int64("venue.id", venueID),
	))
	defer span.End()

	rate, err := s.rates.CurrentRate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate unavailable")
		return ingest.BatchResult{}, errorbank.Unavailable("exchange rate unavailable", errorbank.WithCause(err))
	}

	records, err := s.staged.GetByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return ingest.BatchResult{}, errorbank.Internal("load staged records", errorbank.WithCause(err))
	}

	var result ingest.BatchResult
	var promoted []int64
	for _, record := range records {
		res, err := s.approveOne(ctx, record, rate, venueID)
		if err != nil {
			result.Errors = append(result.Errors, ingest.RecordError{
				ID:     strconv.FormatInt(record.ID, 10),
				Reason: err.Error(),
			})
			continue
		}
		result.Imported++
		result.Created += res.Created
		result.Updated += res.Updated
		promoted = append(promoted, record.ID)
	}

	if len(promoted) > 0 {
		if err := s.staged.Delete(ctx, promoted); err != nil {
			span.RecordError(err)
			return result, errorbank.Internal("dequeue promoted records", errorbank.WithCause(err))
		}
	}
	span.SetAttributes(attribute.Int("records.imported", result.Imported))
	return result, nil
}

func (s *Service) approveOne(ctx context.Context, record entity.StagedRecord, rate float64, venueID int64) (ingest.BatchResult, error) {
	var raw dto.RawRecord
	if err := json.Unmarshal(record.Payload, &raw); err != nil {
		return ingest.BatchResult{}, fmt.Errorf("decode staged payload: %w", err)
	}

	var storeID *int64
	if record.Origin != "" {
		st, err := s.stores.FindByDomain(ctx, record.Origin)
		switch {
		case err == nil:
			storeID = &st.ID
		case errors.Is(err, storerepo.ErrNotFound):
			// No configured store for this origin; the order still imports
			// under the caller's venue.
		default:
			return ingest.BatchResult{}, fmt.Errorf("resolve store %q: %w", record.Origin, err)
		}
	}

	res := s.importer.ImportBatch(ctx, []dto.RawRecord{raw}, rate, venueID, storeID)
	if len(res.Errors) > 0 {
		return res, errors.New(res.Errors[0].Reason)
	}
	if res.Imported != 1 {
		return res, errors.New("record was not imported")
	}
	return res, nil
}

// Discard removes staged records without promoting them.
func (s *Service) Discard(ctx context.Context, ids []int64) error {
	ctx, span := serviceTracer.Start(ctx, "StagingService.Discard", trace.WithAttributes(attribute.Int("ids.count", len(ids))))
	defer span.End()

	if err := s.staged.Delete(ctx, ids); err != nil {
		span.RecordError(err)
		return errorbank.Internal("discard staged records", errorbank.WithCause(err))
	}
	return nil
}
