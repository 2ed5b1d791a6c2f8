package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/config"
	"github.com/cairodesk/backoffice/internal/dto"
)

// ErrUnreachable signals that a source system did not answer within the
// configured bounds.
var ErrUnreachable = errors.New("source unreachable")

// ErrNotConfigured is returned when a feed has no base URL configured.
var ErrNotConfigured = errors.New("source not configured")

// Client fetches raw records from an external system. Implementations
// return payloads verbatim; filtering happens in the calling route.
type Client interface {
	FetchRecords(ctx context.Context, since time.Time) ([]dto.RawRecord, error)
	Origin() string
}

// Clients bundles the configured feeds.
type Clients struct {
	Storefront Client
	Bank       Client
}

// Module provides the source clients to Fx.
var Module = fx.Provide(func(cfg config.Config, logger *zap.Logger) *Clients {
	return New(cfg.Sources, logger)
})

// New builds clients for both feeds from configuration.
func New(cfg config.Sources, logger *zap.Logger) *Clients {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Clients{
		Storefront: &feedClient{
			baseURL: cfg.Storefront.BaseURL,
			token:   cfg.Storefront.Token,
			origin:  cfg.Storefront.Domain,
			client:  httpClient,
			logger:  logger,
		},
		Bank: &feedClient{
			baseURL: cfg.Bank.BaseURL,
			token:   cfg.Bank.Token,
			origin:  "bank",
			client:  httpClient,
			logger:  logger,
		},
	}
}

type feedClient struct {
	baseURL string
	token   string
	origin  string
	client  *http.Client
	logger  *zap.Logger
}

type feedResponse struct {
	Records []dto.RawRecord `json:"records"`
}

func (c *feedClient) Origin() string { return c.origin }

// FetchRecords pulls raw records created since the given time.
func (c *feedClient) FetchRecords(ctx context.Context, since time.Time) ([]dto.RawRecord, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse source URL: %w", err)
	}
	if !since.IsZero() {
		q := u.Query()
		q.Set("since", since.UTC().Format(time.RFC3339))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("source fetch failed", zap.String("origin", c.origin), zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, res.StatusCode)
	}

	var body feedResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode source response: %w", err)
	}
	return body.Records, nil
}
