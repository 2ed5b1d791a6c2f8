package payout

import "go.uber.org/fx"

// Module provides the payout repository to Fx.
var Module = fx.Provide(NewRepository)
