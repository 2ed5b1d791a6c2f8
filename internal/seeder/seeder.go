package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/cairodesk/backoffice/internal/database"
	"github.com/cairodesk/backoffice/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Catalog seeds a venue, its storefront, and a small product catalog so the
// ingestion pipeline has something to match against.
func (s *Seeder) Catalog(ctx context.Context) error {
	now := time.Now().UTC()

	venue := entity.Venue{Name: "Cairo Desk", CreatedAt: now}
	_, err := s.db.NewInsert().Model(&venue).
		On("CONFLICT (name) DO UPDATE SET name = EXCLUDED.name").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return err
	}

	store := entity.Store{Domain: "cairodesk.myshopify.com", Name: "Cairo Desk Store", VenueID: venue.ID, CreatedAt: now}
	if _, err := s.db.NewInsert().Model(&store).
		On("CONFLICT (domain) DO NOTHING").
		Exec(ctx); err != nil {
		return err
	}

	products := []entity.Product{
		{VenueID: venue.ID, Name: "Walnut Desk", SKU: "DESK-WAL", ExternalID: "var-1001", Price: 5200, Active: true, CreatedAt: now},
		{VenueID: venue.ID, Name: "Oak Shelf", SKU: "SHELF-OAK", ExternalID: "var-1002", Price: 1850, Active: true, CreatedAt: now},
		{VenueID: venue.ID, Name: "Desk Lamp", SKU: "LAMP-STD", Price: 640, Active: true, CreatedAt: now},
		{VenueID: venue.ID, Name: "Cable Tray", SKU: "TRAY-CBL", Price: 310, Active: false, CreatedAt: now},
	}
	for _, sample := range products {
		product := sample
		_, err := s.db.NewInsert().Model(&product).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded catalog",
			zap.String("venue", venue.Name),
			zap.Int("products", len(products)),
		)
	}
	return nil
}
