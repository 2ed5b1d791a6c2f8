package payout

import "go.uber.org/fx"

// Module provides the payout service to Fx.
var Module = fx.Provide(NewService)
