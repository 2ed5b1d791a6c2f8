package payout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/entity"
	payoutrepo "github.com/cairodesk/backoffice/internal/repository/payout"
	"github.com/cairodesk/backoffice/pkg/errorbank"
)

type fakePayoutRepo struct {
	created []*entity.Payout
	synced  map[int64]string
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{synced: make(map[int64]string)}
}

func (f *fakePayoutRepo) Create(_ context.Context, p *entity.Payout) error {
	p.ID = int64(len(f.created) + 1)
	f.created = append(f.created, p)
	return nil
}

func (f *fakePayoutRepo) GetByID(_ context.Context, id int64) (*entity.Payout, error) {
	for _, p := range f.created {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, payoutrepo.ErrNotFound
}

func (f *fakePayoutRepo) ListByVenue(_ context.Context, venueID int64) ([]entity.Payout, error) {
	var out []entity.Payout
	for _, p := range f.created {
		if p.VenueID == venueID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePayoutRepo) MarkSynced(_ context.Context, id int64, bankTxID string) error {
	if _, done := f.synced[id]; done {
		return payoutrepo.ErrAlreadySynced
	}
	f.synced[id] = bankTxID
	return nil
}

func newPayoutService(repo Repo) *Service {
	return &Service{repo: repo, logger: zap.NewNop()}
}

func TestCreateDerivesPayoutAmount(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newPayoutService(repo)

	original := 1000.0
	rate := 48.5
	p := &entity.Payout{VenueID: 3, OriginalAmount: &original, ExchangeRate: &rate, Currency: "USD"}
	require.NoError(t, svc.Create(context.Background(), p))

	require.Len(t, repo.created, 1)
	assert.Equal(t, 20.26, repo.created[0].Amount)
	assert.Equal(t, entity.PayoutPending, repo.created[0].Status)
}

func TestCreateBacksFeeOutOfTotal(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newPayoutService(repo)

	p := &entity.Payout{VenueID: 3, Amount: 21.34, Currency: "USD"}
	require.NoError(t, svc.Create(context.Background(), p))

	require.Len(t, repo.created, 1)
	assert.Equal(t, 20.62, repo.created[0].Amount)
}

func TestCreateValidation(t *testing.T) {
	svc := newPayoutService(newFakePayoutRepo())

	var appErr *errorbank.AppError
	require.ErrorAs(t, svc.Create(context.Background(), nil), &appErr)
	require.ErrorAs(t, svc.Create(context.Background(), &entity.Payout{Amount: 10}), &appErr)
	require.ErrorAs(t, svc.Create(context.Background(), &entity.Payout{VenueID: 3}), &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
}

func TestCreateRejectsOriginalAmountWithoutRate(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newPayoutService(repo)

	// An original amount alone cannot derive a payout; without a rate or a
	// positive amount the record would persist as 0.00.
	original := 1000.0
	var appErr *errorbank.AppError
	err := svc.Create(context.Background(), &entity.Payout{VenueID: 3, OriginalAmount: &original, Currency: "USD"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())

	zero := 0.0
	rate := 48.5
	err = svc.Create(context.Background(), &entity.Payout{VenueID: 3, OriginalAmount: &zero, ExchangeRate: &rate, Currency: "USD"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())

	assert.Empty(t, repo.created)
}

func TestMarkSyncedIsIdempotencyGuarded(t *testing.T) {
	repo := newFakePayoutRepo()
	svc := newPayoutService(repo)

	require.NoError(t, svc.MarkSynced(context.Background(), 1, "tx-9"))
	assert.Equal(t, "tx-9", repo.synced[1])

	err := svc.MarkSynced(context.Background(), 1, "tx-10")
	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindConflict, appErr.Kind())
	assert.Equal(t, "tx-9", repo.synced[1])
}

func TestMarkSyncedRequiresTransactionID(t *testing.T) {
	svc := newPayoutService(newFakePayoutRepo())

	var appErr *errorbank.AppError
	require.ErrorAs(t, svc.MarkSynced(context.Background(), 1, ""), &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
}
