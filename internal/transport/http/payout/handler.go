package payout

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/presentation/http/response"
	service "github.com/cairodesk/backoffice/internal/service/payout"
	"github.com/cairodesk/backoffice/pkg/errorbank"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var httpTracer = otel.Tracer("github.com/cairodesk/backoffice/transport/http/payout")

// Handler exposes payout endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a payout Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/payouts")
	g.GET("", h.list)
	g.POST("", h.create)
	g.POST("/:id/synced", h.markSynced)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	venueID, err := strconv.ParseInt(c.QueryParam("venue_id"), 10, 64)
	if err != nil || venueID <= 0 {
		return b.WithError(errorbank.BadRequest("venue_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payouts.list", trace.WithAttributes(attribute.Int64("venue.id", venueID)))
	defer span.End()

	payouts, err := h.svc.ListByVenue(ctx, venueID)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.PayoutResponse, 0, len(payouts))
	for i := range payouts {
		out = append(out, toDTO(&payouts[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

type createPayload struct {
	VenueID        int64    `json:"venue_id"`
	Amount         float64  `json:"amount"`
	OriginalAmount *float64 `json:"original_amount"`
	ExchangeRate   *float64 `json:"exchange_rate"`
	Currency       string   `json:"currency"`
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload createPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	p := &entity.Payout{
		VenueID:        payload.VenueID,
		Amount:         payload.Amount,
		OriginalAmount: payload.OriginalAmount,
		ExchangeRate:   payload.ExchangeRate,
		Currency:       payload.Currency,
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payouts.create", trace.WithAttributes(attribute.Int64("venue.id", p.VenueID)))
	defer span.End()

	if err := h.svc.Create(ctx, p); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(toDTO(p)).Build()
}

type syncedPayload struct {
	BankTransactionID string `json:"bank_transaction_id"`
}

func (h *Handler) markSynced(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload syncedPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payouts.markSynced", trace.WithAttributes(attribute.Int64("payout.id", id)))
	defer span.End()

	if err := h.svc.MarkSynced(ctx, id, payload.BankTransactionID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]bool{"synced": true}).Build()
}

func toDTO(p *entity.Payout) dto.PayoutResponse {
	return dto.PayoutResponse{
		ID:                p.ID,
		VenueID:           p.VenueID,
		Amount:            p.Amount,
		OriginalAmount:    p.OriginalAmount,
		ExchangeRate:      p.ExchangeRate,
		Currency:          p.Currency,
		Status:            p.Status,
		SyncedToBank:      p.SyncedToBank,
		BankTransactionID: p.BankTransactionID,
		CreatedAt:         p.CreatedAt,
	}
}
