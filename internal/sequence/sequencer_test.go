package sequence_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/ingest"
	orderrepo "github.com/cairodesk/backoffice/internal/repository/order"
	"github.com/cairodesk/backoffice/internal/sequence"
)

type fakeSource struct {
	latest string
	errs   []error // popped per call, nil means success
	calls  int
}

func (f *fakeSource) LockLatestNumber(context.Context) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.latest, nil
}

func TestNextOrderNumber(t *testing.T) {
	s := sequence.New(&fakeSource{latest: "#1005"}, zap.NewNop())
	number, err := s.NextOrderNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#1006", number)
}

func TestNextOrderNumberEmptyTable(t *testing.T) {
	s := sequence.New(&fakeSource{latest: ""}, zap.NewNop())
	number, err := s.NextOrderNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#1001", number)
}

func TestNextOrderNumberUnparsableLatest(t *testing.T) {
	for _, latest := range []string{"LEGACY-42x", "#-5", "#abc"} {
		s := sequence.New(&fakeSource{latest: latest}, zap.NewNop())
		number, err := s.NextOrderNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "#1001", number, "latest %q", latest)
	}
}

func TestNextOrderNumberRetriesContention(t *testing.T) {
	src := &fakeSource{
		latest: "#2000",
		errs:   []error{orderrepo.ErrLockContention, orderrepo.ErrLockContention, nil},
	}
	s := sequence.New(src, zap.NewNop())

	number, err := s.NextOrderNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#2001", number)
	assert.Equal(t, 3, src.calls)
}

func TestNextOrderNumberContentionExhausted(t *testing.T) {
	src := &fakeSource{errs: []error{
		orderrepo.ErrLockContention,
		orderrepo.ErrLockContention,
		orderrepo.ErrLockContention,
	}}
	s := sequence.New(src, zap.NewNop())

	_, err := s.NextOrderNumber(context.Background())
	require.ErrorIs(t, err, orderrepo.ErrLockContention)
	assert.Equal(t, 3, src.calls)
}

func TestNextOrderNumberOtherErrorsSurfaceImmediately(t *testing.T) {
	boom := errors.New("db down")
	src := &fakeSource{errs: []error{boom}}
	s := sequence.New(src, zap.NewNop())

	_, err := s.NextOrderNumber(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, src.calls)
}

func TestNextOrderNumberMonotonic(t *testing.T) {
	src := &fakeSource{}
	s := sequence.New(src, zap.NewNop())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		number, err := s.NextOrderNumber(context.Background())
		require.NoError(t, err)
		require.False(t, seen[number], "number %s assigned twice", number)
		seen[number] = true
		src.latest = number
	}
	assert.Equal(t, "#1050", src.latest)
}

// lockStepStore mirrors the production contract: the latest-number read
// holds its lock only for the duration of the call, releasing it before
// the caller inserts, and number uniqueness is enforced at insert.
type lockStepStore struct {
	mu       sync.Mutex
	latest   string
	byNumber map[string]int64
	nextID   int64
}

func (s *lockStepStore) LockLatestNumber(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, nil
}

func (s *lockStepStore) Create(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[order.Number]; taken {
		return orderrepo.ErrNumberConflict
	}
	s.nextID++
	order.ID = s.nextID
	s.byNumber[order.Number] = order.ID
	s.latest = order.Number
	return nil
}

func (s *lockStepStore) Replace(context.Context, int64, *entity.Order) error { return nil }

func (s *lockStepStore) FindByExternalID(context.Context, string) (*entity.Order, error) {
	return nil, orderrepo.ErrNotFound
}

func TestConcurrentCallersGetDistinctNumbers(t *testing.T) {
	store := &lockStepStore{byNumber: make(map[string]int64)}
	engine := ingest.NewEngine(store, sequence.New(store, zap.NewNop()), nil, nil, false, zap.NewNop())

	const callers = 3
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			draft := &entity.Order{CustomerName: "Walk-in", VenueID: 1}
			_, errs[i] = engine.Upsert(context.Background(), draft)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	require.Len(t, store.byNumber, callers)
	for _, number := range []string{"#1001", "#1002", "#1003"} {
		assert.Contains(t, store.byNumber, number)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "#1001", sequence.Format(1001))
}
