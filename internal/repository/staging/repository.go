package staging

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

var repoTracer = otel.Tracer("github.com/cairodesk/backoffice/repository/staging")

// Filter narrows the review queue listing. Zero values match everything.
type Filter struct {
	Amount   *float64
	Currency string
}

// Repository persists fetched-but-unapproved external records.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Insert stages a batch of raw records.
func (r *Repository) Insert(ctx context.Context, records []*entity.StagedRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := repoTracer.Start(ctx, "StagingRepository.Insert", trace.WithAttributes(attribute.Int("records.count", len(records))))
	defer span.End()

	_, err := r.writer.NewInsert().Model(&records).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// List returns staged records matching the filter, oldest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]entity.StagedRecord, error) {
	ctx, span := repoTracer.Start(ctx, "StagingRepository.List")
	defer span.End()

	q := r.reader.NewSelect().Model((*entity.StagedRecord)(nil)).Order("created_at ASC")
	if filter.Amount != nil {
		q = q.Where("total_amount = ?", *filter.Amount)
	}
	if filter.Currency != "" {
		q = q.Where("currency = ?", filter.Currency)
	}

	var records []entity.StagedRecord
	if err := q.Scan(ctx, &records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return records, nil
}

// GetByIDs fetches the staged records with the given ids.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) ([]entity.StagedRecord, error) {
	ctx, span := repoTracer.Start(ctx, "StagingRepository.GetByIDs", trace.WithAttributes(attribute.Int("ids.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}
	var records []entity.StagedRecord
	err := r.writer.NewSelect().
		Model(&records).
		Where("id IN (?)", bun.In(ids)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return records, nil
}

// Delete removes staged records by id, used after successful promotion or
// explicit discard.
func (r *Repository) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, span := repoTracer.Start(ctx, "StagingRepository.Delete", trace.WithAttributes(attribute.Int("ids.count", len(ids))))
	defer span.End()

	_, err := r.writer.NewDelete().
		Model((*entity.StagedRecord)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}
