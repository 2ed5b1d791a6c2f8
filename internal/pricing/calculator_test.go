package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/dto"
)

type fakeMatcher struct {
	total float64
	err   error
}

func (f *fakeMatcher) MatchTotal(context.Context, []dto.RawLineItem, int64) (float64, error) {
	return f.total, f.err
}

func TestCalculateMatched(t *testing.T) {
	c := NewCalculator(&fakeMatcher{total: 1000}, zap.NewNop())

	amounts, err := c.Calculate(context.Background(), nil, 48.5, 1, 25)
	require.NoError(t, err)
	require.NotNil(t, amounts.Original)
	require.NotNil(t, amounts.Base)
	assert.False(t, amounts.Fallback)
	assert.Equal(t, 1000.0, *amounts.Original)
	assert.InDelta(t, 20.6185, *amounts.Base, 0.0001)
	assert.Equal(t, 21.34, amounts.Total)
}

func TestCalculateUnmatchedFallback(t *testing.T) {
	c := NewCalculator(&fakeMatcher{err: &UnmatchedError{Items: []string{"x"}}}, zap.NewNop())

	amounts, err := c.Calculate(context.Background(), nil, 48.5, 1, 50)
	require.NoError(t, err)
	require.NotNil(t, amounts.Original)
	assert.True(t, amounts.Fallback)
	assert.Equal(t, 2425.0, *amounts.Original)
	assert.InDelta(t, 50.0, *amounts.Base, 0.0001)
	assert.Equal(t, 51.75, amounts.Total)
}

func TestCalculateNoRate(t *testing.T) {
	c := NewCalculator(&fakeMatcher{total: 1000}, zap.NewNop())

	for _, rate := range []float64{0, -1} {
		amounts, err := c.Calculate(context.Background(), nil, rate, 1, 50)
		require.NoError(t, err)
		assert.Nil(t, amounts.Original)
		assert.Nil(t, amounts.Base)
		assert.True(t, amounts.Fallback)
		assert.Equal(t, 50.0, amounts.Total)
	}
}

func TestCalculateInfrastructureError(t *testing.T) {
	boom := errors.New("catalog unavailable")
	c := NewCalculator(&fakeMatcher{err: boom}, zap.NewNop())

	_, err := c.Calculate(context.Background(), nil, 48.5, 1, 50)
	require.ErrorIs(t, err, boom)
}

func TestPayoutAmount(t *testing.T) {
	original := 1000.0
	rate := 48.5
	assert.Equal(t, 20.26, PayoutAmount(&original, &rate, 21.34))

	// Without secondary-currency pricing the fee is backed out of the total.
	assert.Equal(t, 20.62, PayoutAmount(nil, nil, 21.34))

	zero := 0.0
	assert.Equal(t, 20.62, PayoutAmount(&original, &zero, 21.34))
}

func TestRoundingHelpers(t *testing.T) {
	assert.Equal(t, 51.75, FeeInclusive(50))
	assert.Equal(t, 1.24, Round2(1.2351))
	assert.Equal(t, 1.23, Round2(1.2349))
}
