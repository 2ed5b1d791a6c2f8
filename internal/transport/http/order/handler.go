package order

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cairodesk/backoffice/internal/dto"
	"github.com/cairodesk/backoffice/internal/entity"
	"github.com/cairodesk/backoffice/internal/ingest"
	"github.com/cairodesk/backoffice/internal/presentation/http/response"
	service "github.com/cairodesk/backoffice/internal/service/order"
	"github.com/cairodesk/backoffice/pkg/errorbank"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var httpTracer = otel.Tracer("github.com/cairodesk/backoffice/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("", h.create)
	g.POST("/sync", h.sync)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toDTO(&orders[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

type createPayload struct {
	CustomerName   string    `json:"customer_name"`
	VenueID        int64     `json:"venue_id"`
	TotalAmount    float64   `json:"total_amount"`
	OriginalAmount *float64  `json:"original_amount"`
	ExchangeRate   *float64  `json:"exchange_rate"`
	Currency       string    `json:"currency"`
	Notes          string    `json:"notes"`
	Tags           []string  `json:"tags"`
	ProcessedAt    time.Time `json:"processed_at"`
	Items          []struct {
		Name      string  `json:"name"`
		Quantity  int     `json:"quantity"`
		SKU       string  `json:"sku"`
		UnitPrice float64 `json:"unit_price"`
	} `json:"items"`
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload createPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.VenueID <= 0 {
		return b.WithError(errorbank.BadRequest("venue_id is required")).Build()
	}

	order := &entity.Order{
		CustomerName:   payload.CustomerName,
		VenueID:        payload.VenueID,
		TotalAmount:    payload.TotalAmount,
		OriginalAmount: payload.OriginalAmount,
		ExchangeRate:   payload.ExchangeRate,
		Currency:       payload.Currency,
		Notes:          payload.Notes,
		Tags:           entity.TagList(payload.Tags),
		ProcessedAt:    payload.ProcessedAt,
	}
	for _, item := range payload.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		order.Items = append(order.Items, &entity.LineItem{
			Name:      item.Name,
			Quantity:  qty,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Total:     item.UnitPrice * float64(qty),
		})
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.Int64("venue.id", order.VenueID))
	defer span.End()

	if err := h.svc.CreateManual(ctx, order); err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

type syncPayload struct {
	Source  string    `json:"source"`
	VenueID int64     `json:"venue_id"`
	Since   time.Time `json:"since"`
}

func (h *Handler) sync(c echo.Context) error {
	b := response.New(c)

	var payload syncPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.VenueID <= 0 {
		return b.WithError(errorbank.BadRequest("venue_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.sync", trace.WithAttributes(
		attribute.String("sync.source", payload.Source),
		attribute.Int64("venue.id", payload.VenueID),
	))
	defer span.End()

	var (
		result ingest.BatchResult
		err    error
	)
	switch payload.Source {
	case entity.SourceBank:
		result, err = h.svc.SyncBank(ctx, payload.Since, payload.VenueID)
	case entity.SourceStorefront, "":
		result, err = h.svc.SyncStorefront(ctx, payload.Since, payload.VenueID)
	default:
		return b.WithError(errorbank.BadRequest("unknown sync source")).Build()
	}
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toBatchDTO(result)).Build()
}

func toDTO(order *entity.Order) dto.OrderResponse {
	out := dto.OrderResponse{
		ID:                order.ID,
		Number:            order.Number,
		ExternalID:        order.ExternalID,
		CustomerName:      order.CustomerName,
		VenueID:           order.VenueID,
		StoreID:           order.StoreID,
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		TotalAmount:       order.TotalAmount,
		OriginalAmount:    order.OriginalAmount,
		ExchangeRate:      order.ExchangeRate,
		Currency:          order.Currency,
		ProcessedAt:       order.ProcessedAt,
		ShippingCity:      order.ShippingCity,
		ShippingCountry:   order.ShippingCountry,
		Tags:              order.Tags,
		Notes:             order.Notes,
		Source:            order.Source,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, dto.LineItemResponse{
			Name:      item.Name,
			Quantity:  item.Quantity,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}
	return out
}

func toBatchDTO(result ingest.BatchResult) dto.BatchResultResponse {
	out := dto.BatchResultResponse{Imported: result.Imported, Created: result.Created, Updated: result.Updated}
	for _, recErr := range result.Errors {
		out.Errors = append(out.Errors, dto.BatchErrorResponse{ID: recErr.ID, Reason: recErr.Reason})
	}
	return out
}
