package pricing

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	productrepo "github.com/cairodesk/backoffice/internal/repository/product"
)

// Module provides the matcher and calculator to Fx.
var Module = fx.Options(
	fx.Provide(func(repo *productrepo.Repository, logger *zap.Logger) *Matcher {
		return NewMatcher(repo, logger)
	}),
	fx.Provide(func(matcher *Matcher, logger *zap.Logger) *Calculator {
		return NewCalculator(matcher, logger)
	}),
)
