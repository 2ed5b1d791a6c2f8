package staging

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/exchange"
	"github.com/cairodesk/backoffice/internal/ingest"
	stagingrepo "github.com/cairodesk/backoffice/internal/repository/staging"
	storerepo "github.com/cairodesk/backoffice/internal/repository/store"
)

// Module provides the staging queue service to Fx.
var Module = fx.Provide(func(
	staged *stagingrepo.Repository,
	stores *storerepo.Repository,
	rates *exchange.Provider,
	engine *ingest.Engine,
	logger *zap.Logger,
) *Service {
	return NewService(staged, stores, rates, engine, logger)
})
