package store

import "go.uber.org/fx"

// Module provides the store repository to Fx.
var Module = fx.Provide(NewRepository)
