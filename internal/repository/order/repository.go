package order

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairodesk/backoffice/internal/database"
	"github.com/cairodesk/backoffice/internal/entity"
)

var repoTracer = otel.Tracer("github.com/cairodesk/backoffice/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrConflict is returned when an insert trips the external-id uniqueness
// constraint, typically a concurrent import of the same record.
var ErrConflict = errors.New("order conflicts with an existing record")

// ErrNumberConflict is returned when an insert trips the order-number
// uniqueness constraint: another writer claimed the number between the
// sequencer's locked read and this insert. Callers re-sequence and retry.
var ErrNumberConflict = errors.New("order number already taken")

// ErrLockContention is returned when the order-number row lock could not
// be acquired.
var ErrLockContention = errors.New("order number lock contention")

// Repository encapsulates read/write access for canonical orders and their
// line items.
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

// Create persists a new order with its line items in one transaction.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for _, item := range order.Items {
			item.OrderID = order.ID
		}
		_, err := tx.NewInsert().Model(&order.Items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		if isUniqueViolation(err) {
			if isNumberConstraint(err) {
				return ErrNumberConflict
			}
			return ErrConflict
		}
	}
	return err
}

// Replace overwrites all mutable fields of an existing order and fully
// replaces its line-item collection in one transaction, so a reader never
// observes the order with zero items mid-update. The existing venue
// assignment is preserved unless the draft supplies one.
func (r *Repository) Replace(ctx context.Context, id int64, draft *entity.Order) error {
	if draft == nil {
		return errors.New("nil draft")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Replace", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		update := tx.NewUpdate().
			Model((*entity.Order)(nil)).
			Where("id = ?", id).
			Set("customer_name = ?", draft.CustomerName).
			Set("status = ?", draft.Status).
			Set("payment_status = ?", draft.PaymentStatus).
			Set("fulfillment_status = ?", draft.FulfillmentStatus).
			Set("total_amount = ?", draft.TotalAmount).
			Set("original_amount = ?", draft.OriginalAmount).
			Set("exchange_rate = ?", draft.ExchangeRate).
			Set("currency = ?", draft.Currency).
			Set("processed_at = ?", draft.ProcessedAt).
			Set("shipping_city = ?", draft.ShippingCity).
			Set("shipping_country = ?", draft.ShippingCountry).
			Set("tags = ?", draft.Tags).
			Set("notes = ?", draft.Notes).
			Set("source = ?", draft.Source).
			Set("updated_at = ?", time.Now().UTC())
		if draft.VenueID > 0 {
			update = update.Set("venue_id = ?", draft.VenueID)
		}
		if draft.StoreID != nil {
			update = update.Set("store_id = ?", draft.StoreID)
		}
		res, err := update.Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}

		if _, err := tx.NewDelete().Model((*entity.LineItem)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if len(draft.Items) == 0 {
			return nil
		}
		for _, item := range draft.Items {
			item.ID = 0
			item.OrderID = id
		}
		_, err = tx.NewInsert().Model(&draft.Items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
	}
	return err
}

// GetByID fetches an order with its line items using the read replica.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Relation("Items").Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// FindByExternalID fetches an order by its source-system identifier, the
// dedup key for sync passes. Reads go to the writer so an upsert decision
// never races replica lag.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindByExternalID", trace.WithAttributes(attribute.String("order.external_id", externalID)))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().Model(order).Where("external_id = ?", externalID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns recent orders, newest processing time first.
func (r *Repository) List(ctx context.Context, limit int) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Relation("Items").
		Order("processed_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ExistingExternalIDs reports which of the given external ids are already
// imported. Callers use it to pre-filter sync batches.
func (r *Repository) ExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ExistingExternalIDs", trace.WithAttributes(attribute.Int("ids.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}
	var existing []string
	err := r.writer.NewSelect().
		Model((*entity.Order)(nil)).
		Column("external_id").
		Where("external_id IN (?)", bun.In(ids)).
		Scan(ctx, &existing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	set := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		set[id] = struct{}{}
	}
	return set, nil
}

// LockLatestNumber reads the number of the most recently processed order
// under an exclusive row lock, inside its own serializable transaction. An
// empty string means the table holds no orders yet. The lock releases at
// commit, before the caller inserts; uniqueness of assigned numbers is
// ultimately enforced by the number constraint, surfaced as
// ErrNumberConflict from Create.
func (r *Repository) LockLatestNumber(ctx context.Context) (string, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.LockLatestNumber")
	defer span.End()

	var number string
	err := r.writer.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model((*entity.Order)(nil)).
			Column("number").
			Order("processed_at DESC").
			Limit(1).
			For("UPDATE").
			Scan(ctx, &number)
		if errors.Is(err, sql.ErrNoRows) {
			number = ""
			return nil
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock failed")
		if isLockContention(err) {
			return "", ErrLockContention
		}
		return "", err
	}
	return number, nil
}

// isUniqueViolation recognizes unique-constraint errors across the
// supported drivers.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// isNumberConstraint reports whether a unique violation names the order
// number rather than the external id.
func isNumberConstraint(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return strings.Contains(pgErr.Field('n'), "number")
	}
	return strings.Contains(err.Error(), "number")
}

// isLockContention recognizes serialization failures and lock timeouts.
func isLockContention(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		code := pgErr.Field('C')
		return code == "40001" || code == "40P01" || code == "55P03"
	}
	msg := err.Error()
	return strings.Contains(msg, "could not serialize") || strings.Contains(msg, "lock")
}
