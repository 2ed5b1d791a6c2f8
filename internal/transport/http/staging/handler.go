package staging

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/ingest"
	"github.com/cairodesk/backoffice/internal/presentation/http/response"
	ordersvc "github.com/cairodesk/backoffice/internal/service/order"
	"github.com/cairodesk/backoffice/internal/staging"
	"github.com/cairodesk/backoffice/pkg/errorbank"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var httpTracer = otel.Tracer("github.com/cairodesk/backoffice/transport/http/staging")

// Handler exposes the review queue over HTTP.
type Handler struct {
	svc    *staging.Service
	orders *ordersvc.Service
}

// NewHandler constructs a staging Handler.
func NewHandler(svc *staging.Service, orders *ordersvc.Service) *Handler {
	return &Handler{svc: svc, orders: orders}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/staged")
	g.GET("", h.list)
	g.POST("/pull", h.pull)
	g.POST("/approve", h.approve)
	g.POST("/discard", h.discard)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var filter staging.Filter
	if v := c.QueryParam("amount"); v != "" {
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid amount filter", errorbank.WithCause(err))).Build()
		}
		filter.Amount = &amount
	}
	filter.Currency = c.QueryParam("currency")

	ctx, span := httpTracer.Start(c.Request().Context(), "staged.list")
	defer span.End()

	items, err := h.svc.List(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.StagedRecordResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.StagedRecordResponse{
			ID:          item.Record.ID,
			TotalAmount: item.Record.TotalAmount,
			Currency:    item.Record.Currency,
			Origin:      item.Record.Origin,
			CreatedAt:   item.Record.CreatedAt,
			Record:      item.Raw,
		})
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

type pullPayload struct {
	Since time.Time `json:"since"`
}

func (h *Handler) pull(c echo.Context) error {
	b := response.New(c)

	var payload pullPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "staged.pull")
	defer span.End()

	staged, err := h.orders.PullStorefront(ctx, payload.Since)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int{"staged": staged}).Build()
}

type approvePayload struct {
	IDs     []int64 `json:"ids"`
	VenueID int64   `json:"venue_id"`
}

func (h *Handler) approve(c echo.Context) error {
	b := response.New(c)

	var payload approvePayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if len(payload.IDs) == 0 {
		return b.WithError(errorbank.BadRequest("ids are required")).Build()
	}
	if payload.VenueID <= 0 {
		return b.WithError(errorbank.BadRequest("venue_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "staged.approve", trace.WithAttributes(
		attribute.Int("ids.count", len(payload.IDs)),
		attribute.Int64("venue.id", payload.VenueID),
	))
	defer span.End()

	result, err := h.svc.Approve(ctx, payload.IDs, payload.VenueID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toBatchDTO(result)).Build()
}

type discardPayload struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) discard(c echo.Context) error {
	b := response.New(c)

	var payload discardPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if len(payload.IDs) == 0 {
		return b.WithError(errorbank.BadRequest("ids are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "staged.discard", trace.WithAttributes(attribute.Int("ids.count", len(payload.IDs))))
	defer span.End()

	if err := h.svc.Discard(ctx, payload.IDs); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int{"discarded": len(payload.IDs)}).Build()
}

func toBatchDTO(result ingest.BatchResult) dto.BatchResultResponse {
	out := dto.BatchResultResponse{Imported: result.Imported, Created: result.Created, Updated: result.Updated}
	for _, recErr := range result.Errors {
		out.Errors = append(out.Errors, dto.BatchErrorResponse{ID: recErr.ID, Reason: recErr.Reason})
	}
	return out
}
