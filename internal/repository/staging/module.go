package staging

import "go.uber.org/fx"

// Module provides the staging repository to Fx.
var Module = fx.Provide(NewRepository)
