package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/config"
)

// ErrRateUnavailable signals that no fresh rate could be fetched and no
// cached value is within the staleness tolerance.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Clock abstracts time for deterministic cache testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Module wires the exchange-rate provider into the Fx graph.
var Module = fx.Provide(New)

// Provider supplies the current base→quote exchange rate, caching the last
// successful fetch to bound upstream calls. The cache is owned by the
// provider instance, never process-wide.
type Provider struct {
	cfg    config.Exchange
	client *http.Client
	clock  Clock
	logger *zap.Logger

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time
}

// New constructs a Provider from application configuration.
func New(cfg config.Config, logger *zap.Logger) *Provider {
	return NewProvider(cfg.Exchange, nil, nil, logger)
}

// NewProvider builds a Provider with explicit collaborators. A nil client
// or clock falls back to production defaults.
func NewProvider(cfg config.Exchange, client *http.Client, clock Clock, logger *zap.Logger) *Provider {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Provider{
		cfg:    cfg,
		client: client,
		clock:  clock,
		logger: logger,
	}
}

type rateResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// CurrentRate returns the current exchange rate. A cached value younger
// than the fresh TTL short-circuits the upstream call; on upstream failure
// a cached value within the stale TTL is served instead.
func (p *Provider) CurrentRate(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.rate > 0 && now.Sub(p.fetchedAt) < p.cfg.FreshTTL {
		return p.rate, nil
	}

	rate, err := p.fetch(ctx)
	if err != nil {
		if p.rate > 0 && now.Sub(p.fetchedAt) < p.cfg.StaleTTL {
			if p.logger != nil {
				p.logger.Warn("serving stale exchange rate",
					zap.Float64("rate", p.rate),
					zap.Time("fetched_at", p.fetchedAt),
					zap.Error(err),
				)
			}
			return p.rate, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	p.rate = rate
	p.fetchedAt = now
	return rate, nil
}

func (p *Provider) fetch(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIURL, nil)
	if err != nil {
		return 0, err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate API returned status %d", res.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}

	rate, ok := body.Rates[p.cfg.Quote]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("no usable %s rate in response", p.cfg.Quote)
	}
	return rate, nil
}
