package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/ingest"
	orderrepo "github.com/cairodesk/backoffice/internal/repository/order"
	"github.com/cairodesk/backoffice/internal/source"
	"github.com/cairodesk/backoffice/pkg/errorbank"
)

type fakeRepo struct {
	orders   map[int64]*entity.Order
	imported map[string]struct{}
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	if order, ok := f.orders[id]; ok {
		return order, nil
	}
	return nil, orderrepo.ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, _ int) ([]entity.Order, error) {
	out := make([]entity.Order, 0, len(f.orders))
	for _, order := range f.orders {
		out = append(out, *order)
	}
	return out, nil
}

func (f *fakeRepo) ExistingExternalIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := f.imported[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

type fakeUpserter struct {
	drafts  []*entity.Order
	batches [][]dto.RawRecord
	rates   []float64
}

func (f *fakeUpserter) Upsert(_ context.Context, draft *entity.Order) (ingest.Outcome, error) {
	draft.ID = int64(len(f.drafts) + 1)
	draft.Number = "#1001"
	f.drafts = append(f.drafts, draft)
	return ingest.OutcomeCreated, nil
}

func (f *fakeUpserter) ImportBatch(_ context.Context, raws []dto.RawRecord, rate float64, _ int64, _ *int64) ingest.BatchResult {
	f.batches = append(f.batches, raws)
	f.rates = append(f.rates, rate)
	return ingest.BatchResult{Imported: len(raws), Created: len(raws)}
}

type fakeRates struct {
	rate float64
	err  error
}

func (f *fakeRates) CurrentRate(context.Context) (float64, error) { return f.rate, f.err }

type fakeStager struct {
	staged []dto.RawRecord
	origin string
}

func (f *fakeStager) Enqueue(_ context.Context, raws []dto.RawRecord, origin string) error {
	f.staged = append(f.staged, raws...)
	f.origin = origin
	return nil
}

type fakeSourceClient struct {
	records []dto.RawRecord
	err     error
	origin  string
}

func (f *fakeSourceClient) FetchRecords(context.Context, time.Time) ([]dto.RawRecord, error) {
	return f.records, f.err
}

func (f *fakeSourceClient) Origin() string { return f.origin }

type serviceFixture struct {
	svc        *Service
	repo       *fakeRepo
	engine     *fakeUpserter
	stager     *fakeStager
	storefront *fakeSourceClient
	bank       *fakeSourceClient
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		repo:       &fakeRepo{orders: map[int64]*entity.Order{}, imported: map[string]struct{}{}},
		engine:     &fakeUpserter{},
		stager:     &fakeStager{},
		storefront: &fakeSourceClient{origin: "shop.example.com"},
		bank:       &fakeSourceClient{origin: "bank"},
	}
	f.svc = &Service{
		repo:   f.repo,
		engine: f.engine,
		rates:  &fakeRates{rate: 48.5},
		sources: &source.Clients{
			Storefront: f.storefront,
			Bank:       f.bank,
		},
		stager: f.stager,
		logger: zap.NewNop(),
	}
	return f
}

func TestGetNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Get(context.Background(), 404)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindNotFound, appErr.Kind())
}

func TestCreateManualRequiresVenue(t *testing.T) {
	f := newFixture()

	err := f.svc.CreateManual(context.Background(), &entity.Order{CustomerName: "Mona"})

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
	assert.Empty(t, f.engine.drafts)
}

func TestCreateManualDefaultsAndInvariant(t *testing.T) {
	f := newFixture()

	external := "should-be-dropped"
	original := 1000.0
	rate := 48.5
	draft := &entity.Order{
		VenueID:        3,
		ExternalID:     &external,
		Source:         entity.SourceStorefront,
		OriginalAmount: &original,
		ExchangeRate:   &rate,
		TotalAmount:    999, // stale value supplied by the caller
	}
	require.NoError(t, f.svc.CreateManual(context.Background(), draft))

	require.Len(t, f.engine.drafts, 1)
	stored := f.engine.drafts[0]
	assert.Nil(t, stored.ExternalID)
	assert.Equal(t, entity.SourceManual, stored.Source)
	assert.Equal(t, entity.DefaultCustomerName, stored.CustomerName)
	assert.Equal(t, entity.StatusOpen, stored.Status)
	assert.Equal(t, 21.34, stored.TotalAmount)
	assert.False(t, stored.ProcessedAt.IsZero())
}

func TestSyncStorefrontImportsFetched(t *testing.T) {
	f := newFixture()
	f.storefront.records = []dto.RawRecord{
		{ExternalID: "sf-1", Total: 10, Currency: "USD"},
		{ExternalID: "sf-2", Total: 20, Currency: "USD"},
	}

	result, err := f.svc.SyncStorefront(context.Background(), time.Time{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, f.engine.batches, 1)
	assert.Len(t, f.engine.batches[0], 2)
	assert.Equal(t, 48.5, f.engine.rates[0])
}

func TestSyncBankCreditsOnlySkippingImported(t *testing.T) {
	f := newFixture()
	f.repo.imported["bank-2"] = struct{}{}
	f.bank.records = []dto.RawRecord{
		{ExternalID: "bank-1", Total: 100, Direction: "credit"},
		{ExternalID: "bank-2", Total: 200, Direction: "CREDIT"}, // already imported
		{ExternalID: "bank-3", Total: 300, Direction: "debit"},
	}

	result, err := f.svc.SyncBank(context.Background(), time.Time{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, f.engine.batches, 1)
	require.Len(t, f.engine.batches[0], 1)
	assert.Equal(t, "bank-1", f.engine.batches[0][0].ExternalID)
}

func TestSyncRateUnavailable(t *testing.T) {
	f := newFixture()
	f.svc.rates = &fakeRates{err: errors.New("upstream down")}

	_, err := f.svc.SyncStorefront(context.Background(), time.Time{}, 3)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindUnavailable, appErr.Kind())
	assert.Empty(t, f.engine.batches)
}

func TestSyncSourceNotConfigured(t *testing.T) {
	f := newFixture()
	f.storefront.err = source.ErrNotConfigured

	_, err := f.svc.SyncStorefront(context.Background(), time.Time{}, 3)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
}

func TestPullStorefrontStagesFreshRecords(t *testing.T) {
	f := newFixture()
	f.repo.imported["sf-1"] = struct{}{}
	f.storefront.records = []dto.RawRecord{
		{ExternalID: "sf-1", Total: 10},
		{ExternalID: "sf-2", Total: 20},
	}

	count, err := f.svc.PullStorefront(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, f.stager.staged, 1)
	assert.Equal(t, "sf-2", f.stager.staged[0].ExternalID)
	assert.Equal(t, "shop.example.com", f.stager.origin)
}

func TestPullStorefrontNothingFresh(t *testing.T) {
	f := newFixture()
	f.repo.imported["sf-1"] = struct{}{}
	f.storefront.records = []dto.RawRecord{{ExternalID: "sf-1", Total: 10}}

	count, err := f.svc.PullStorefront(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.stager.staged)
}
