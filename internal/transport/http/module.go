package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/cairodesk/backoffice/internal/transport/http/order"
	payouttransport "github.com/cairodesk/backoffice/internal/transport/http/payout"
	stagingtransport "github.com/cairodesk/backoffice/internal/transport/http/staging"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	stagingtransport.Module,
	payouttransport.Module,
)
