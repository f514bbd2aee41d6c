package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"

	"github.com/tripwise/tripwise-backend/internal/repository"
)

const (
	detailCacheTTL     = 5 * time.Minute
	detailCacheCleanup = 10 * time.Minute
)

// CatalogRepository is the Postgres-backed catalog store. Destination and
// hotel detail projections are cached with a short TTL since they back the
// plan enrichment path and change rarely.
type CatalogRepository struct {
	db    *sqlx.DB
	cache *gocache.Cache
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{
		db:    db,
		cache: gocache.New(detailCacheTTL, detailCacheCleanup),
	}
}

// combinationRow is the flat scan target for the destination x hotel join.
type combinationRow struct {
	DestID          int64   `db:"dest_id"`
	DestName        string  `db:"dest_name"`
	Country         string  `db:"country"`
	FlightCost      float64 `db:"flight_cost"`
	DailyLivingCost float64 `db:"daily_living_cost"`
	IsCoastal       bool    `db:"is_coastal"`
	Description     string  `db:"description"`
	BestSeasons     string  `db:"best_seasons"`
	HotelID         int64   `db:"hotel_id"`
	HotelName       string  `db:"hotel_name"`
	Stars           int     `db:"stars"`
	PricePerNight   float64 `db:"price_per_night"`
	IsSeaView       bool    `db:"is_sea_view"`
}

// QueryCombinations returns every destination x hotel pairing matching the
// filter predicates, in stable catalog order.
func (r *CatalogRepository) QueryCombinations(ctx context.Context, filters repository.CatalogFilters) ([]repository.Combination, error) {
	query := `
		SELECT d.id AS dest_id, d.name AS dest_name, d.country, d.flight_cost,
		       d.daily_living_cost, d.is_coastal, d.description, d.best_seasons,
		       h.id AS hotel_id, h.name AS hotel_name, h.stars, h.price_per_night, h.is_sea_view
		FROM destinations d
		JOIN hotels h ON h.destination_id = d.id
		WHERE h.stars >= $1`
	args := []interface{}{filters.MinStars}

	if filters.IsCoastal != nil {
		args = append(args, *filters.IsCoastal)
		query += fmt.Sprintf(" AND d.is_coastal = $%d", len(args))
	}
	if filters.IsSeaView != nil {
		args = append(args, *filters.IsSeaView)
		query += fmt.Sprintf(" AND h.is_sea_view = $%d", len(args))
	}
	if len(filters.SeasonTokens) > 0 {
		clauses := make([]string, 0, len(filters.SeasonTokens))
		for _, token := range filters.SeasonTokens {
			args = append(args, "%"+token+"%")
			clauses = append(clauses, fmt.Sprintf("d.best_seasons ILIKE $%d", len(args)))
		}
		query += " AND (" + strings.Join(clauses, " OR ") + ")"
	}
	query += " ORDER BY d.id, h.id"

	var rows []combinationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query combinations: %w", err)
	}

	combos := make([]repository.Combination, len(rows))
	for i, row := range rows {
		combos[i] = repository.Combination{
			Destination: repository.Destination{
				ID:              row.DestID,
				Name:            row.DestName,
				Country:         row.Country,
				FlightCost:      row.FlightCost,
				DailyLivingCost: row.DailyLivingCost,
				IsCoastal:       row.IsCoastal,
				Description:     row.Description,
				BestSeasons:     row.BestSeasons,
			},
			Hotel: repository.Hotel{
				ID:            row.HotelID,
				DestinationID: row.DestID,
				Name:          row.HotelName,
				Stars:         row.Stars,
				PricePerNight: row.PricePerNight,
				IsSeaView:     row.IsSeaView,
			},
		}
	}
	return combos, nil
}

// GetDestination returns the full destination projection with images,
// hotels and events.
func (r *CatalogRepository) GetDestination(ctx context.Context, id int64) (*repository.DestinationDetail, error) {
	cacheKey := fmt.Sprintf("destination:%d", id)
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.(*repository.DestinationDetail), nil
	}

	var dest repository.Destination
	if err := r.db.GetContext(ctx, &dest, `SELECT * FROM destinations WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}

	images, err := r.imagePaths(ctx, "destination_id", id)
	if err != nil {
		return nil, err
	}

	var hotels []repository.Hotel
	if err := r.db.SelectContext(ctx, &hotels, `SELECT * FROM hotels WHERE destination_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to list hotels: %w", err)
	}
	hotelDetails := make([]repository.HotelDetail, len(hotels))
	for i, hotel := range hotels {
		hotelImages, err := r.imagePaths(ctx, "hotel_id", hotel.ID)
		if err != nil {
			return nil, err
		}
		hotelDetails[i] = repository.HotelDetail{Hotel: hotel, Images: hotelImages}
	}

	var events []repository.Event
	if err := r.db.SelectContext(ctx, &events, `SELECT * FROM events WHERE destination_id = $1 ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	detail := &repository.DestinationDetail{
		Destination: dest,
		Images:      images,
		Hotels:      hotelDetails,
		Events:      events,
	}
	r.cache.Set(cacheKey, detail, gocache.DefaultExpiration)
	return detail, nil
}

// GetHotel returns a hotel with its image assets.
func (r *CatalogRepository) GetHotel(ctx context.Context, id int64) (*repository.HotelDetail, error) {
	cacheKey := fmt.Sprintf("hotel:%d", id)
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.(*repository.HotelDetail), nil
	}

	var hotel repository.Hotel
	if err := r.db.GetContext(ctx, &hotel, `SELECT * FROM hotels WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get hotel: %w", err)
	}

	images, err := r.imagePaths(ctx, "hotel_id", id)
	if err != nil {
		return nil, err
	}

	detail := &repository.HotelDetail{Hotel: hotel, Images: images}
	r.cache.Set(cacheKey, detail, gocache.DefaultExpiration)
	return detail, nil
}

// QueryEvents lists events at a destination, optionally narrowed by season
// and a per-person price ceiling. Season "all" matches everything.
func (r *CatalogRepository) QueryEvents(ctx context.Context, destinationID int64, season string, maxPrice *float64) ([]repository.Event, error) {
	query := `SELECT * FROM events WHERE destination_id = $1`
	args := []interface{}{destinationID}

	if season != "" && season != "all" {
		args = append(args, season)
		query += fmt.Sprintf(" AND season IN ($%d, 'all')", len(args))
	}
	if maxPrice != nil {
		args = append(args, *maxPrice)
		query += fmt.Sprintf(" AND price_per_person <= $%d", len(args))
	}
	query += " ORDER BY id"

	var events []repository.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

func (r *CatalogRepository) imagePaths(ctx context.Context, column string, id int64) ([]string, error) {
	var paths []string
	query := fmt.Sprintf(`SELECT file_path FROM image_assets WHERE %s = $1 ORDER BY id`, column)
	if err := r.db.SelectContext(ctx, &paths, query, id); err != nil {
		return nil, fmt.Errorf("failed to list image assets: %w", err)
	}
	return paths, nil
}
