package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairodesk/backoffice/internal/database"
	"github.com/cairodesk/backoffice/internal/entity"
)

var repoTracer = otel.Tracer("github.com/cairodesk/backoffice/repository/store")

// ErrNotFound is returned when no store matches the given domain.
var ErrNotFound = errors.New("store not found")

// Repository resolves storefront accounts.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// FindByDomain resolves a store by its storefront domain.
func (r *Repository) FindByDomain(ctx context.Context, domain string) (*entity.Store, error) {
	ctx, span := repoTracer.Start(ctx, "StoreRepository.FindByDomain", trace.WithAttributes(attribute.String("store.domain", domain)))
	defer span.End()

	st := new(entity.Store)
	err := r.reader.NewSelect().Model(st).Where("domain = ?", domain).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return st, nil
}
