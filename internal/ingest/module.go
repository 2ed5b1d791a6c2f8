package ingest

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/config"
	"github.com/cairodesk/backoffice/internal/messaging"
	"github.com/cairodesk/backoffice/internal/pricing"
	orderrepo "github.com/cairodesk/backoffice/internal/repository/order"
	"github.com/cairodesk/backoffice/internal/sequence"
)

// Module provides the transformer and upsert engine to Fx.
var Module = fx.Options(
	fx.Provide(func(calc *pricing.Calculator, logger *zap.Logger) *Transformer {
		return NewTransformer(calc, logger)
	}),
	fx.Provide(func(
		repo *orderrepo.Repository,
		seq *sequence.Sequencer,
		transformer *Transformer,
		publisher messaging.Client,
		cfg config.Config,
		logger *zap.Logger,
	) *Engine {
		return NewEngine(repo, seq, transformer, publisher, cfg.Messaging.Enabled, logger)
	}),
)
