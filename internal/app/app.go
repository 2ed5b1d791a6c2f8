package app

import (
	"go.uber.org/fx"

	"github.com/cairodesk/backoffice/internal/cache"
	"github.com/cairodesk/backoffice/internal/config"
	"github.com/cairodesk/backoffice/internal/database"
	"github.com/cairodesk/backoffice/internal/exchange"
	"github.com/cairodesk/backoffice/internal/ingest"
	"github.com/cairodesk/backoffice/internal/logger"
	"github.com/cairodesk/backoffice/internal/messaging"
	"github.com/cairodesk/backoffice/internal/observability"
	"github.com/cairodesk/backoffice/internal/pricing"
	repositoryorder "github.com/cairodesk/backoffice/internal/repository/order"
	repositorypayout "github.com/cairodesk/backoffice/internal/repository/payout"
	repositoryproduct "github.com/cairodesk/backoffice/internal/repository/product"
	repositorystaging "github.com/cairodesk/backoffice/internal/repository/staging"
	repositorystore "github.com/cairodesk/backoffice/internal/repository/store"
	"github.com/cairodesk/backoffice/internal/sequence"
	grpcserver "github.com/cairodesk/backoffice/internal/server/grpc"
	httpserver "github.com/cairodesk/backoffice/internal/server/http"
	serviceorder "github.com/cairodesk/backoffice/internal/service/order"
	servicepayout "github.com/cairodesk/backoffice/internal/service/payout"
	"github.com/cairodesk/backoffice/internal/source"
	"github.com/cairodesk/backoffice/internal/staging"
	transporthttp "github.com/cairodesk/backoffice/internal/transport/http"
	"github.com/cairodesk/backoffice/internal/worker"
	workerorder "github.com/cairodesk/backoffice/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	repositoryproduct.Module,
	repositorystaging.Module,
	repositorystore.Module,
	repositorypayout.Module,
	exchange.Module,
	pricing.Module,
	sequence.Module,
	ingest.Module,
	source.Module,
	staging.Module,
	serviceorder.Module,
	servicepayout.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
