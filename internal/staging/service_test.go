package staging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/ingest"
	stagingrepo "github.com/cairodesk/backoffice/internal/repository/staging"
	storerepo "github.com/cairodesk/backoffice/internal/repository/store"
	"github.com/cairodesk/backoffice/pkg/errorbank"
)

type fakeStagedStore struct {
	nextID  int64
	records map[int64]entity.StagedRecord
	deleted []int64
}

func newFakeStagedStore() *fakeStagedStore {
	return &fakeStagedStore{records: make(map[int64]entity.StagedRecord)}
}

func (f *fakeStagedStore) Insert(_ context.Context, records []*entity.StagedRecord) error {
	for _, record := range records {
		f.nextID++
		record.ID = f.nextID
		f.records[record.ID] = *record
	}
	return nil
}

func (f *fakeStagedStore) List(_ context.Context, _ stagingrepo.Filter) ([]entity.StagedRecord, error) {
	out := make([]entity.StagedRecord, 0, len(f.records))
	for id := int64(1); id <= f.nextID; id++ {
		if record, ok := f.records[id]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeStagedStore) GetByIDs(_ context.Context, ids []int64) ([]entity.StagedRecord, error) {
	out := make([]entity.StagedRecord, 0, len(ids))
	for _, id := range ids {
		if record, ok := f.records[id]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeStagedStore) Delete(_ context.Context, ids []int64) error {
	for _, id := range ids {
		delete(f.records, id)
	}
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeStoreResolver struct {
	stores map[string]*entity.Store
}

func (f *fakeStoreResolver) FindByDomain(_ context.Context, domain string) (*entity.Store, error) {
	if st, ok := f.stores[domain]; ok {
		return st, nil
	}
	return nil, storerepo.ErrNotFound
}

type fakeRateSource struct {
	rate float64
	err  error
}

func (f *fakeRateSource) CurrentRate(context.Context) (float64, error) { return f.rate, f.err }

type fakeImporter struct {
	failExternalIDs map[string]string // external id -> failure reason
	calls           []importCall
}

type importCall struct {
	externalID string
	rate       float64
	venueID    int64
	storeID    *int64
}

func (f *fakeImporter) ImportBatch(_ context.Context, raws []dto.RawRecord, rate float64, venueID int64, storeID *int64) ingest.BatchResult {
	var result ingest.BatchResult
	for _, raw := range raws {
		f.calls = append(f.calls, importCall{externalID: raw.ExternalID, rate: rate, venueID: venueID, storeID: storeID})
		if reason, ok := f.failExternalIDs[raw.ExternalID]; ok {
			result.Errors = append(result.Errors, ingest.RecordError{ID: raw.ExternalID, Reason: reason})
			continue
		}
		result.Imported++
		result.Created++
	}
	return result
}

func newTestService(staged *fakeStagedStore, stores *fakeStoreResolver, rates *fakeRateSource, importer *fakeImporter) *Service {
	if stores == nil {
		stores = &fakeStoreResolver{}
	}
	if rates == nil {
		rates = &fakeRateSource{rate: 48.5}
	}
	if importer == nil {
		importer = &fakeImporter{}
	}
	return NewService(staged, stores, rates, importer, zap.NewNop())
}

func stage(t *testing.T, svc *Service, raws ...dto.RawRecord) {
	t.Helper()
	require.NoError(t, svc.Enqueue(context.Background(), raws, "feed"))
}

func TestEnqueueDenormalizesFilterFields(t *testing.T) {
	staged := newFakeStagedStore()
	svc := newTestService(staged, nil, nil, nil)

	stage(t, svc,
		dto.RawRecord{ExternalID: "sf-1", Total: 21, Currency: "USD", Domain: "shop.example.com"},
		dto.RawRecord{ExternalID: "sf-2", Total: 9, Currency: "EGP"},
	)

	require.Len(t, staged.records, 2)
	first := staged.records[1]
	assert.Equal(t, 21.0, first.TotalAmount)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "shop.example.com", first.Origin)

	// Origin falls back to the caller-supplied value.
	assert.Equal(t, "feed", staged.records[2].Origin)

	var raw dto.RawRecord
	require.NoError(t, json.Unmarshal(first.Payload, &raw))
	assert.Equal(t, "sf-1", raw.ExternalID)
}

func TestListSkipsUndecodablePayloads(t *testing.T) {
	staged := newFakeStagedStore()
	svc := newTestService(staged, nil, nil, nil)

	stage(t, svc, dto.RawRecord{ExternalID: "sf-1", Total: 21, Currency: "USD"})
	staged.nextID++
	staged.records[staged.nextID] = entity.StagedRecord{ID: staged.nextID, Payload: []byte("{broken")}

	items, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "sf-1", items[0].Raw.ExternalID)
}

func TestApprovePromotesAndDequeues(t *testing.T) {
	staged := newFakeStagedStore()
	stores := &fakeStoreResolver{stores: map[string]*entity.Store{
		"shop.example.com": {ID: 7, Domain: "shop.example.com", VenueID: 3},
	}}
	importer := &fakeImporter{}
	svc := newTestService(staged, stores, &fakeRateSource{rate: 48.5}, importer)

	stage(t, svc, dto.RawRecord{ExternalID: "sf-1", Total: 21, Currency: "USD", Domain: "shop.example.com"})

	result, err := svc.Approve(context.Background(), []int64{1}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)
	assert.Empty(t, staged.records)

	require.Len(t, importer.calls, 1)
	call := importer.calls[0]
	assert.Equal(t, "sf-1", call.externalID)
	assert.Equal(t, 48.5, call.rate)
	assert.Equal(t, int64(3), call.venueID)
	require.NotNil(t, call.storeID)
	assert.Equal(t, int64(7), *call.storeID)
}

func TestApproveUnknownDomainImportsWithoutStore(t *testing.T) {
	staged := newFakeStagedStore()
	importer := &fakeImporter{}
	svc := newTestService(staged, nil, nil, importer)

	stage(t, svc, dto.RawRecord{ExternalID: "sf-1", Total: 21, Currency: "USD", Domain: "nobody.example.com"})

	result, err := svc.Approve(context.Background(), []int64{1}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, importer.calls, 1)
	assert.Nil(t, importer.calls[0].storeID)
}

func TestApprovePartialFailureKeepsFailedStaged(t *testing.T) {
	staged := newFakeStagedStore()
	importer := &fakeImporter{failExternalIDs: map[string]string{"sf-2": "no catalog match"}}
	svc := newTestService(staged, nil, nil, importer)

	stage(t, svc,
		dto.RawRecord{ExternalID: "sf-1", Total: 21, Currency: "USD"},
		dto.RawRecord{ExternalID: "sf-2", Total: 9, Currency: "USD"},
	)

	result, err := svc.Approve(context.Background(), []int64{1, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "2", result.Errors[0].ID)
	assert.Contains(t, result.Errors[0].Reason, "no catalog match")

	// The failed record stays queued for retry; the promoted one is gone.
	assert.NotContains(t, staged.records, int64(1))
	assert.Contains(t, staged.records, int64(2))
}

func TestApproveRateUnavailable(t *testing.T) {
	staged := newFakeStagedStore()
	importer := &fakeImporter{}
	svc := newTestService(staged, nil, &fakeRateSource{err: errors.New("upstream down")}, importer)

	stage(t, svc, dto.RawRecord{ExternalID: "sf-1", Total: 21, Currency: "USD"})

	_, err := svc.Approve(context.Background(), []int64{1}, 3)
	require.Error(t, err)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindUnavailable, appErr.Kind())

	// Nothing imports and nothing leaves the queue without a usable rate.
	assert.Empty(t, importer.calls)
	assert.Contains(t, staged.records, int64(1))
}

func TestDiscard(t *testing.T) {
	staged := newFakeStagedStore()
	svc := newTestService(staged, nil, nil, nil)

	stage(t, svc,
		dto.RawRecord{ExternalID: "sf-1", Total: 21, Currency: "USD"},
		dto.RawRecord{ExternalID: "sf-2", Total: 9, Currency: "USD"},
	)

	require.NoError(t, svc.Discard(context.Background(), []int64{1}))
	assert.NotContains(t, staged.records, int64(1))
	assert.Contains(t, staged.records, int64(2))
}
