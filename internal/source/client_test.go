package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/config"
)

func TestFetchRecords(t *testing.T) {
	var gotAuth, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSince = r.URL.Query().Get("since")
		_, _ = w.Write([]byte(`{"records":[{"external_id":"sf-1","total":21,"currency":"USD"}]}`))
	}))
	defer srv.Close()

	clients := New(config.Sources{
		Storefront: config.Storefront{BaseURL: srv.URL, Token: "secret", Domain: "shop.example.com"},
		Timeout:    5 * time.Second,
	}, zap.NewNop())

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	records, err := clients.Storefront.FetchRecords(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sf-1", records[0].ExternalID)
	assert.Equal(t, 21.0, records[0].Total)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "2026-08-01T00:00:00Z", gotSince)
	assert.Equal(t, "shop.example.com", clients.Storefront.Origin())
}

func TestFetchRecordsNotConfigured(t *testing.T) {
	clients := New(config.Sources{Timeout: time.Second}, zap.NewNop())

	_, err := clients.Bank.FetchRecords(context.Background(), time.Time{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestFetchRecordsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	clients := New(config.Sources{
		Bank:    config.Bank{BaseURL: srv.URL, Token: "t"},
		Timeout: 5 * time.Second,
	}, zap.NewNop())

	_, err := clients.Bank.FetchRecords(context.Background(), time.Time{})
	require.ErrorIs(t, err, ErrUnreachable)
}
