package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/pricing"
	orderrepo "github.com/cairodesk/backoffice/internal/repository/order"
)

type fakeOrderStore struct {
	nextID     int64
	byID       map[int64]*entity.Order
	byExternal map[string]int64
	byNumber   map[string]int64

	createErrs []error // popped per Create call, nil means success
	findMisses int     // initial FindByExternalID calls forced to miss
	replaced   int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		byID:       make(map[int64]*entity.Order),
		byExternal: make(map[string]int64),
		byNumber:   make(map[string]int64),
	}
}

func (f *fakeOrderStore) Create(_ context.Context, order *entity.Order) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if order.ExternalID != nil {
		if _, dup := f.byExternal[*order.ExternalID]; dup {
			return orderrepo.ErrConflict
		}
	}
	if order.Number != "" {
		if _, dup := f.byNumber[order.Number]; dup {
			return orderrepo.ErrNumberConflict
		}
	}
	f.nextID++
	order.ID = f.nextID
	stored := *order
	f.byID[order.ID] = &stored
	if order.ExternalID != nil {
		f.byExternal[*order.ExternalID] = order.ID
	}
	if order.Number != "" {
		f.byNumber[order.Number] = order.ID
	}
	return nil
}

func (f *fakeOrderStore) Replace(_ context.Context, id int64, draft *entity.Order) error {
	existing, ok := f.byID[id]
	if !ok {
		return orderrepo.ErrNotFound
	}
	updated := *draft
	updated.ID = id
	updated.Number = existing.Number
	f.byID[id] = &updated
	f.replaced++
	return nil
}

func (f *fakeOrderStore) FindByExternalID(_ context.Context, externalID string) (*entity.Order, error) {
	if f.findMisses > 0 {
		f.findMisses--
		return nil, orderrepo.ErrNotFound
	}
	id, ok := f.byExternal[externalID]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	order := *f.byID[id]
	return &order, nil
}

type fakeSequencer struct{ next int64 }

func (f *fakeSequencer) NextOrderNumber(context.Context) (string, error) {
	f.next++
	return fmt.Sprintf("#%d", 1000+f.next), nil
}

type stubCalculator struct{ err error }

func (s *stubCalculator) Calculate(_ context.Context, _ []dto.RawLineItem, rate float64, _ int64, nativeTotal float64) (pricing.Amounts, error) {
	if s.err != nil {
		return pricing.Amounts{}, s.err
	}
	original := nativeTotal * rate
	base := nativeTotal
	return pricing.Amounts{Original: &original, Base: &base, Total: pricing.FeeInclusive(base)}, nil
}

func newTestEngine(store *fakeOrderStore) *Engine {
	transformer := NewTransformer(&stubCalculator{}, zap.NewNop())
	return NewEngine(store, &fakeSequencer{}, transformer, nil, false, zap.NewNop())
}

func externalID(id string) *string { return &id }

func TestUpsertCreatesWithoutExternalID(t *testing.T) {
	store := newFakeOrderStore()
	engine := newTestEngine(store)

	draft := &entity.Order{CustomerName: "Mona", VenueID: 1}
	outcome, err := engine.Upsert(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, "#1001", draft.Number)

	// A second draft without an external id never deduplicates.
	second := &entity.Order{CustomerName: "Mona", VenueID: 1}
	outcome, err = engine.Upsert(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, "#1002", second.Number)
}

func TestUpsertReplacesExistingByExternalID(t *testing.T) {
	store := newFakeOrderStore()
	engine := newTestEngine(store)

	first := &entity.Order{ExternalID: externalID("sf-1"), CustomerName: "Mona", VenueID: 1, TotalAmount: 10}
	_, err := engine.Upsert(context.Background(), first)
	require.NoError(t, err)

	update := &entity.Order{ExternalID: externalID("sf-1"), CustomerName: "Mona H", VenueID: 1, TotalAmount: 12}
	outcome, err := engine.Upsert(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	// Identity survives the replace.
	assert.Equal(t, first.ID, update.ID)
	assert.Equal(t, first.Number, update.Number)
	assert.Equal(t, 1, store.replaced)

	stored := store.byID[first.ID]
	assert.Equal(t, "Mona H", stored.CustomerName)
	assert.Equal(t, 12.0, stored.TotalAmount)
}

func TestUpsertConflictRetriesAsUpdate(t *testing.T) {
	store := newFakeOrderStore()
	engine := newTestEngine(store)

	// Simulate a concurrent writer landing the same external id between the
	// lookup and the insert: the first lookup misses, the create hits the
	// uniqueness constraint, the second lookup finds the winner.
	winner := &entity.Order{ExternalID: externalID("sf-9"), CustomerName: "Race Winner", VenueID: 1, Number: "#1001"}
	store.nextID++
	winner.ID = store.nextID
	store.byID[winner.ID] = winner
	store.byExternal["sf-9"] = winner.ID
	store.findMisses = 1

	draft := &entity.Order{ExternalID: externalID("sf-9"), CustomerName: "Race Loser", VenueID: 1}
	outcome, err := engine.Upsert(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, winner.ID, draft.ID)
	assert.Equal(t, "#1001", draft.Number)
	assert.Equal(t, "Race Loser", store.byID[winner.ID].CustomerName)
}

func TestUpsertResequencesWhenNumberTaken(t *testing.T) {
	store := newFakeOrderStore()
	engine := newTestEngine(store)

	// A concurrent writer committed #1001 after our locked read released,
	// so the first sequenced number collides on insert. The create
	// sequences again instead of misreading the conflict as a duplicate
	// external id.
	winner := &entity.Order{ExternalID: externalID("sf-1"), CustomerName: "First", VenueID: 1, Number: "#1001"}
	store.nextID++
	winner.ID = store.nextID
	store.byID[winner.ID] = winner
	store.byExternal["sf-1"] = winner.ID
	store.byNumber["#1001"] = winner.ID

	draft := &entity.Order{ExternalID: externalID("sf-2"), CustomerName: "Second", VenueID: 1}
	outcome, err := engine.Upsert(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, "#1002", draft.Number)
	assert.Len(t, store.byID, 2)
	assert.Equal(t, "#1001", store.byID[winner.ID].Number)
}

type stuckSequencer struct{}

func (stuckSequencer) NextOrderNumber(context.Context) (string, error) { return "#1001", nil }

func TestUpsertFailsWhenNumberRetriesExhausted(t *testing.T) {
	store := newFakeOrderStore()
	store.byNumber["#1001"] = 99
	engine := NewEngine(store, stuckSequencer{}, nil, nil, false, zap.NewNop())

	_, err := engine.Upsert(context.Background(), &entity.Order{CustomerName: "x", VenueID: 1})
	require.ErrorIs(t, err, orderrepo.ErrNumberConflict)
	assert.Empty(t, store.byID)
}

func TestUpsertPropagatesStoreErrors(t *testing.T) {
	store := newFakeOrderStore()
	boom := errors.New("db down")
	store.createErrs = []error{boom}
	engine := newTestEngine(store)

	_, err := engine.Upsert(context.Background(), &entity.Order{CustomerName: "x", VenueID: 1})
	require.ErrorIs(t, err, boom)
}

func TestImportBatchIsolatesFailures(t *testing.T) {
	store := newFakeOrderStore()
	engine := newTestEngine(store)
	// Second create fails, first and third succeed.
	store.createErrs = []error{nil, errors.New("db hiccup"), nil}

	raws := []dto.RawRecord{
		{ExternalID: "sf-1", Total: 10, Currency: "USD"},
		{ExternalID: "sf-2", Total: 20, Currency: "USD"},
		{ExternalID: "sf-3", Total: 30, Currency: "USD"},
	}

	result := engine.ImportBatch(context.Background(), raws, 48.5, 1, nil)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "sf-2", result.Errors[0].ID)
	assert.Contains(t, result.Errors[0].Reason, "db hiccup")
}

func TestImportBatchIdempotentResync(t *testing.T) {
	store := newFakeOrderStore()
	engine := newTestEngine(store)

	raws := []dto.RawRecord{{ExternalID: "sf-1", Total: 10, Currency: "USD",
		LineItems: []dto.RawLineItem{{Name: "Lamp", Quantity: 1, UnitPrice: 10}}}}

	result := engine.ImportBatch(context.Background(), raws, 48.5, 1, nil)
	require.Empty(t, result.Errors)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 1, result.Created)
	require.Len(t, store.byID, 1)

	// Same payload again: still one order, replaced in place.
	result = engine.ImportBatch(context.Background(), raws, 48.5, 1, nil)
	require.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Len(t, store.byID, 1)
	assert.Equal(t, 1, store.replaced)
}
