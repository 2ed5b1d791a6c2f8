package product

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairodesk/backoffice/internal/database"
	"github.com/cairodesk/backoffice/internal/entity"
)

var repoTracer = otel.Tracer("github.com/cairodesk/backoffice/repository/product")

// Repository encapsulates read access to the product catalog. The ingestion
// pipeline never mutates products.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// ActiveByVenue lists a venue's active catalog entries.
func (r *Repository) ActiveByVenue(ctx context.Context, venueID int64) ([]entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.ActiveByVenue", trace.WithAttributes(attribute.Int64("venue.id", venueID)))
	defer span.End()

	var products []entity.Product
	err := r.reader.NewSelect().
		Model(&products).
		Where("venue_id = ?", venueID).
		Where("active").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return products, nil
}
