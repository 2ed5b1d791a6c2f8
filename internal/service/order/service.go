package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/cache"
	"github.com/cairodesk/backoffice/internal/config"
	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/exchange"
	"github.com/cairodesk/backoffice/internal/ingest"
	"github.com/cairodesk/backoffice/internal/pricing"
	orderrepo "github.com/cairodesk/backoffice/internal/repository/order"
	"github.com/cairodesk/backoffice/internal/source"
	"github.com/cairodesk/backoffice/internal/staging"
	"github.com/cairodesk/backoffice/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/cairodesk/backoffice/service/order")

// Repo is the order persistence surface the service reads through.
type Repo interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, limit int) ([]entity.Order, error)
	ExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// Upserter persists drafts and batches through the dedup engine.
type Upserter interface {
	Upsert(ctx context.Context, draft *entity.Order) (ingest.Outcome, error)
	ImportBatch(ctx context.Context, raws []dto.RawRecord, rate float64, venueID int64, storeID *int64) ingest.BatchResult
}

// RateSource supplies the current exchange rate.
type RateSource interface {
	CurrentRate(ctx context.Context) (float64, error)
}

// Stager enqueues fetched records for human review.
type Stager interface {
	Enqueue(ctx context.Context, raws []dto.RawRecord, origin string) error
}

// Service encapsulates business logic around canonical orders: reads,
// manual creation, and the sync passes against the external feeds.
type Service struct {
	repo     Repo
	engine   Upserter
	rates    RateSource
	sources  *source.Clients
	stager   Stager
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *orderrepo.Repository
	Engine     *ingest.Engine
	Rates      *exchange.Provider
	Sources    *source.Clients
	Staging    *staging.Service
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:     p.Repository,
		engine:   p.Engine,
		rates:    p.Rates,
		sources:  p.Sources,
		stager:   p.Staging,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		if s.logger != nil {
			s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	return order, nil
}

// List returns recent orders.
func (s *Service) List(ctx context.Context, limit int) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// CreateManual persists a manually entered order. Manual orders carry no
// external id, so creation is unconditional; the engine assigns the next
// order number. When both secondary-currency pricing fields are present the
// total is recomputed so the stored amounts stay consistent.
func (s *Service) CreateManual(ctx context.Context, draft *entity.Order) error {
	if draft == nil {
		return errorbank.BadRequest("order payload is required")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateManual", trace.WithAttributes(attribute.Int64("venue.id", draft.VenueID)))
	defer span.End()

	if draft.VenueID <= 0 {
		return errorbank.BadRequest("venue is required")
	}
	if strings.TrimSpace(draft.CustomerName) == "" {
		draft.CustomerName = entity.DefaultCustomerName
	}
	if draft.Status == "" {
		draft.Status = entity.StatusOpen
	}
	draft.ExternalID = nil
	draft.Source = entity.SourceManual
	if draft.ProcessedAt.IsZero() {
		draft.ProcessedAt = time.Now().UTC()
	}
	if draft.OriginalAmount != nil && draft.ExchangeRate != nil && *draft.ExchangeRate > 0 {
		draft.TotalAmount = pricing.FeeInclusive(*draft.OriginalAmount / *draft.ExchangeRate)
	}

	if _, err := s.engine.Upsert(ctx, draft); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, draft); err != nil {
		if s.logger != nil {
			s.logger.Warn("orders cache write failed", zap.Int64("id", draft.ID), zap.Error(err))
		}
	}
	return nil
}

// SyncStorefront imports storefront orders created since the given time,
// updating records already present (idempotent re-sync).
func (s *Service) SyncStorefront(ctx context.Context, since time.Time, venueID int64) (ingest.BatchResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SyncStorefront", trace.WithAttributes(attribute.Int64("venue.id", venueID)))
	defer span.End()

	raws, rate, err := s.fetch(ctx, s.sources.Storefront, since)
	if err != nil {
		span.RecordError(err)
		return ingest.BatchResult{}, err
	}
	return s.engine.ImportBatch(ctx, raws, rate, venueID, nil), nil
}

// SyncBank imports bank transactions created since the given time. Only
// credits enter the ledger; already-imported transactions are skipped
// rather than replaced, since bank rows never change retroactively.
func (s *Service) SyncBank(ctx context.Context, since time.Time, venueID int64) (ingest.BatchResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SyncBank", trace.WithAttributes(attribute.Int64("venue.id", venueID)))
	defer span.End()

	raws, rate, err := s.fetch(ctx, s.sources.Bank, since)
	if err != nil {
		span.RecordError(err)
		return ingest.BatchResult{}, err
	}

	credits := make([]dto.RawRecord, 0, len(raws))
	for _, raw := range raws {
		if strings.EqualFold(raw.Direction, "credit") {
			credits = append(credits, raw)
		}
	}
	fresh, err := s.withoutImported(ctx, credits)
	if err != nil {
		span.RecordError(err)
		return ingest.BatchResult{}, err
	}
	return s.engine.ImportBatch(ctx, fresh, rate, venueID, nil), nil
}

// PullStorefront fetches storefront orders into the staging queue for
// review, skipping records already imported.
func (s *Service) PullStorefront(ctx context.Context, since time.Time) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.PullStorefront")
	defer span.End()

	raws, err := s.sources.Storefront.FetchRecords(ctx, since)
	if err != nil {
		span.RecordError(err)
		return 0, sourceError(err)
	}
	fresh, err := s.withoutImported(ctx, raws)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.stager.Enqueue(ctx, fresh, s.sources.Storefront.Origin()); err != nil {
		span.RecordError(err)
		return 0, err
	}
	return len(fresh), nil
}

func (s *Service) fetch(ctx context.Context, client source.Client, since time.Time) ([]dto.RawRecord, float64, error) {
	rate, err := s.rates.CurrentRate(ctx)
	if err != nil {
		return nil, 0, errorbank.Unavailable("exchange rate unavailable", errorbank.WithCause(err))
	}
	raws, err := client.FetchRecords(ctx, since)
	if err != nil {
		return nil, 0, sourceError(err)
	}
	return raws, rate, nil
}

func (s *Service) withoutImported(ctx context.Context, raws []dto.RawRecord) ([]dto.RawRecord, error) {
	ids := make([]string, 0, len(raws))
	for _, raw := range raws {
		if raw.ExternalID != "" {
			ids = append(ids, raw.ExternalID)
		}
	}
	existing, err := s.repo.ExistingExternalIDs(ctx, ids)
	if err != nil {
		return nil, errorbank.Internal("check imported records", errorbank.WithCause(err))
	}
	fresh := make([]dto.RawRecord, 0, len(raws))
	for _, raw := range raws {
		if _, ok := existing[raw.ExternalID]; ok {
			continue
		}
		fresh = append(fresh, raw)
	}
	return fresh, nil
}

func sourceError(err error) error {
	if errors.Is(err, source.ErrNotConfigured) {
		return errorbank.BadRequest("source is not configured", errorbank.WithCause(err))
	}
	return errorbank.Unavailable("source unreachable", errorbank.WithCause(err))
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}
