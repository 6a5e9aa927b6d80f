package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFlightRepository implements the FlightRepository interface on PostgreSQL
type GormFlightRepository struct {
	db *gorm.DB
}

// NewGormFlightRepository creates a new GORM flight repository
func NewGormFlightRepository(db *gorm.DB) repository.FlightRepository {
	return &GormFlightRepository{
		db: db,
	}
}

// TrackedFlights GORM model for database mapping
type TrackedFlights struct {
	ID                          string         `gorm:"type:uuid;primaryKey"`
	BaseFlightID                string         `gorm:"column:base_flight_id;index"`
	FlightNumber                string         `gorm:"column:flight_number;size:16;uniqueIndex:idx_tracked_flight_identity"`
	FlightDate                  datatypes.Date `gorm:"column:flight_date;uniqueIndex:idx_tracked_flight_identity;index:idx_tracked_flight_route,priority:3"`
	Origin                      string         `gorm:"column:origin;size:3;uniqueIndex:idx_tracked_flight_identity;index:idx_tracked_flight_route,priority:1"`
	Destination                 string         `gorm:"column:destination;size:3;uniqueIndex:idx_tracked_flight_identity;index:idx_tracked_flight_route,priority:2"`
	AirlineCode                 string         `gorm:"column:airline_code;size:8"`
	AirlineNameFa               string         `gorm:"column:airline_name_fa"`
	AirlineNameEn               string         `gorm:"column:airline_name_en"`
	DepartureTime               time.Time      `gorm:"column:departure_time"`
	ArrivalTime                 time.Time      `gorm:"column:arrival_time"`
	IsActive                    bool           `gorm:"column:is_active;default:true"`
	LastTrackedAt               time.Time      `gorm:"column:last_tracked_at"`
	CurrentLowestPrice          *int64         `gorm:"column:current_lowest_price"`
	CurrentLowestPriceProvider  string         `gorm:"column:current_lowest_price_provider"`
	CurrentLowestPriceUpdatedAt *time.Time     `gorm:"column:current_lowest_price_updated_at"`
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// TableName overrides the default table name
func (TrackedFlights) TableName() string {
	return "tracked_flights"
}

// PriceSnapshots GORM model for database mapping
type PriceSnapshots struct {
	ID                    string         `gorm:"type:uuid;primaryKey"`
	TrackedFlightID       string         `gorm:"column:tracked_flight_id;type:uuid;index:idx_snapshot_flight_provider,priority:1"`
	Provider              string         `gorm:"column:provider;size:32;index:idx_snapshot_flight_provider,priority:2"`
	AdultPrice            int64          `gorm:"column:adult_price"`
	ChildPrice            *int64         `gorm:"column:child_price"`
	InfantPrice           *int64         `gorm:"column:infant_price"`
	AvailableSeats        int            `gorm:"column:available_seats"`
	IsAvailable           bool           `gorm:"column:is_available"`
	ScrapedAt             time.Time      `gorm:"column:scraped_at;index;index:idx_snapshot_flight_provider,priority:3,sort:desc"`
	PriceChangeAmount     *int64         `gorm:"column:price_change_amount"`
	PriceChangePercentage *float64       `gorm:"column:price_change_percentage"`
	RawData               datatypes.JSON `gorm:"column:raw_data;type:jsonb"`
	CreatedAt             time.Time
}

// TableName overrides the default table name
func (PriceSnapshots) TableName() string {
	return "price_snapshots"
}

// LowestPriceSnapshots GORM model for database mapping
type LowestPriceSnapshots struct {
	ID                    string                                           `gorm:"type:uuid;primaryKey"`
	TrackedFlightID       string                                           `gorm:"column:tracked_flight_id;type:uuid;index:idx_lowest_flight_time,priority:1"`
	LowestPrice           int64                                            `gorm:"column:lowest_price"`
	Provider              string                                           `gorm:"column:provider"`
	ScrapedAt             time.Time                                        `gorm:"column:scraped_at;index:idx_lowest_flight_time,priority:2,sort:desc"`
	PriceChangeAmount     *int64                                           `gorm:"column:price_change_amount"`
	PriceChangePercentage *float64                                         `gorm:"column:price_change_percentage"`
	ComparisonData        datatypes.JSONType[entity.LowestPriceComparison] `gorm:"column:comparison_data;type:jsonb"`
	CreatedAt             time.Time
}

// TableName overrides the default table name
func (LowestPriceSnapshots) TableName() string {
	return "lowest_price_snapshots"
}

// FindCachedOffers returns the latest snapshot of every (flight, provider)
// pair on the route for the date, cheapest first
func (r *GormFlightRepository) FindCachedOffers(ctx context.Context, origin, destination string, date time.Time, limit int) ([]entity.CachedOffer, error) {
	offers, err := r.latestForRoute(ctx, origin, destination, []time.Time{date})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Snapshot.AdultPrice < offers[j].Snapshot.AdultPrice
	})
	if limit > 0 && len(offers) > limit {
		offers = offers[:limit]
	}
	return offers, nil
}

// RecentRouteSnapshots returns the latest snapshot per (flight, provider)
// for the route's flights on any of the dates
func (r *GormFlightRepository) RecentRouteSnapshots(ctx context.Context, origin, destination string, dates []time.Time) ([]entity.CachedOffer, error) {
	return r.latestForRoute(ctx, origin, destination, dates)
}

func (r *GormFlightRepository) latestForRoute(ctx context.Context, origin, destination string, dates []time.Time) ([]entity.CachedOffer, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	days := make([]string, len(dates))
	for i, d := range dates {
		days[i] = d.Format("2006-01-02")
	}

	var flights []TrackedFlights
	err := r.db.WithContext(ctx).
		Where("origin = ? AND destination = ? AND flight_date IN ? AND is_active = ?", origin, destination, days, true).
		Find(&flights).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked flights: %w", err)
	}
	if len(flights) == 0 {
		return nil, nil
	}

	byID := make(map[string]*entity.TrackedFlight, len(flights))
	ids := make([]string, 0, len(flights))
	for i := range flights {
		byID[flights[i].ID] = flights[i].toEntity()
		ids = append(ids, flights[i].ID)
	}

	var snaps []PriceSnapshots
	err = r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (tracked_flight_id, provider) *
		FROM price_snapshots
		WHERE tracked_flight_id IN ?
		ORDER BY tracked_flight_id, provider, scraped_at DESC`, ids).
		Scan(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}

	offers := make([]entity.CachedOffer, 0, len(snaps))
	for i := range snaps {
		flight, ok := byID[snaps[i].TrackedFlightID]
		if !ok {
			continue
		}
		offers = append(offers, entity.CachedOffer{Flight: *flight, Snapshot: snaps[i].toEntity()})
	}
	return offers, nil
}

// UpsertTrackedFlight creates the flight or refreshes its descriptive fields.
// Lowest price fields are left alone; they move through UpdateLowestPrice.
func (r *GormFlightRepository) UpsertTrackedFlight(ctx context.Context, flight *entity.TrackedFlight) (*entity.TrackedFlight, error) {
	now := time.Now().UTC()
	model := trackedFlightModel(flight)
	model.ID = uuid.NewString()
	model.IsActive = true
	model.LastTrackedAt = now
	model.CreatedAt = now
	model.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "flight_number"}, {Name: "flight_date"}, {Name: "origin"}, {Name: "destination"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_flight_id", "airline_code", "airline_name_fa", "airline_name_en",
			"departure_time", "arrival_time", "is_active", "last_tracked_at", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tracked flight: %w", err)
	}

	var stored TrackedFlights
	err = r.db.WithContext(ctx).
		Where("flight_number = ? AND flight_date = ? AND origin = ? AND destination = ?",
			model.FlightNumber, time.Time(model.FlightDate).Format("2006-01-02"), model.Origin, model.Destination).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reload tracked flight: %w", err)
	}
	return stored.toEntity(), nil
}

// GetTrackedFlight finds a flight by its canonical key
func (r *GormFlightRepository) GetTrackedFlight(ctx context.Context, baseFlightID string) (*entity.TrackedFlight, error) {
	var model TrackedFlights
	result := r.db.WithContext(ctx).Where("base_flight_id = ?", baseFlightID).Order("updated_at DESC").First(&model)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return model.toEntity(), nil
}

// UpdateLowestPrice moves the flight's current lowest price
func (r *GormFlightRepository) UpdateLowestPrice(ctx context.Context, trackedFlightID string, price int64, provider string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&TrackedFlights{}).
		Where("id = ?", trackedFlightID).
		Updates(map[string]interface{}{
			"current_lowest_price":            price,
			"current_lowest_price_provider":   provider,
			"current_lowest_price_updated_at": at,
			"updated_at":                      time.Now().UTC(),
		}).Error
}

// AppendSnapshot inserts an immutable snapshot
func (r *GormFlightRepository) AppendSnapshot(ctx context.Context, snapshot *entity.PriceSnapshot) error {
	model, err := priceSnapshotModel(snapshot)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	snapshot.ID = model.ID
	return nil
}

// LatestSnapshot returns the newest snapshot, for one provider when given
func (r *GormFlightRepository) LatestSnapshot(ctx context.Context, trackedFlightID, provider string) (*entity.PriceSnapshot, error) {
	q := r.db.WithContext(ctx).Where("tracked_flight_id = ?", trackedFlightID)
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}

	var model PriceSnapshots
	result := q.Order("scraped_at DESC").First(&model)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	snap := model.toEntity()
	return &snap, nil
}

// Snapshots returns the flight's snapshots since the given time, oldest first
func (r *GormFlightRepository) Snapshots(ctx context.Context, trackedFlightID string, since time.Time) ([]entity.PriceSnapshot, error) {
	q := r.db.WithContext(ctx).Where("tracked_flight_id = ?", trackedFlightID)
	if !since.IsZero() {
		q = q.Where("scraped_at >= ?", since)
	}

	var rows []PriceSnapshots
	if err := q.Order("scraped_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	snaps := make([]entity.PriceSnapshot, 0, len(rows))
	for i := range rows {
		snaps = append(snaps, rows[i].toEntity())
	}
	return snaps, nil
}

// LatestPerProvider returns the newest snapshot of every provider of the flight
func (r *GormFlightRepository) LatestPerProvider(ctx context.Context, trackedFlightID string) ([]entity.PriceSnapshot, error) {
	var rows []PriceSnapshots
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (provider) *
		FROM price_snapshots
		WHERE tracked_flight_id = ?
		ORDER BY provider, scraped_at DESC`, trackedFlightID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	snaps := make([]entity.PriceSnapshot, 0, len(rows))
	for i := range rows {
		snaps = append(snaps, rows[i].toEntity())
	}
	return snaps, nil
}

// AppendLowestPriceSnapshot inserts one cycle's cheapest price
func (r *GormFlightRepository) AppendLowestPriceSnapshot(ctx context.Context, snapshot *entity.LowestPriceSnapshot) error {
	model := LowestPriceSnapshots{
		ID:                    uuid.NewString(),
		TrackedFlightID:       snapshot.TrackedFlightID,
		LowestPrice:           snapshot.LowestPrice,
		Provider:              snapshot.Provider,
		ScrapedAt:             snapshot.ScrapedAt,
		PriceChangeAmount:     snapshot.PriceChangeAmount,
		PriceChangePercentage: snapshot.PriceChangePercentage,
		ComparisonData:        datatypes.NewJSONType(snapshot.Comparison),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	snapshot.ID = model.ID
	return nil
}

// LatestLowestPriceSnapshot returns the flight's last cycle result
func (r *GormFlightRepository) LatestLowestPriceSnapshot(ctx context.Context, trackedFlightID string) (*entity.LowestPriceSnapshot, error) {
	var model LowestPriceSnapshots
	result := r.db.WithContext(ctx).Where("tracked_flight_id = ?", trackedFlightID).Order("scraped_at DESC").First(&model)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	snap := model.toEntity()
	return &snap, nil
}

// LowestPriceHistory returns cycle results since the given time, oldest first
func (r *GormFlightRepository) LowestPriceHistory(ctx context.Context, trackedFlightID string, since time.Time) ([]entity.LowestPriceSnapshot, error) {
	q := r.db.WithContext(ctx).Where("tracked_flight_id = ?", trackedFlightID)
	if !since.IsZero() {
		q = q.Where("scraped_at >= ?", since)
	}

	var rows []LowestPriceSnapshots
	if err := q.Order("scraped_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.LowestPriceSnapshot, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

// ScrapeCounts aggregates snapshots per provider since the given time
func (r *GormFlightRepository) ScrapeCounts(ctx context.Context, since time.Time) ([]entity.ProviderScrapeCounts, error) {
	var rows []struct {
		Provider     string
		ScrapeCount  int
		FlightsFound int
		FirstScrape  time.Time
		LastScrape   time.Time
	}
	err := r.db.WithContext(ctx).Model(&PriceSnapshots{}).
		Select("provider, COUNT(*) AS scrape_count, COUNT(DISTINCT tracked_flight_id) AS flights_found, MIN(scraped_at) AS first_scrape, MAX(scraped_at) AS last_scrape").
		Where("scraped_at >= ?", since).
		Group("provider").
		Order("scrape_count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make([]entity.ProviderScrapeCounts, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, entity.ProviderScrapeCounts{
			Provider:     row.Provider,
			ScrapeCount:  row.ScrapeCount,
			FlightsFound: row.FlightsFound,
			FirstScrape:  row.FirstScrape,
			LastScrape:   row.LastScrape,
		})
	}
	return counts, nil
}

// LatestRouteScrape returns when the route was last scraped for the date
func (r *GormFlightRepository) LatestRouteScrape(ctx context.Context, origin, destination string, date time.Time) (time.Time, error) {
	var last sql.NullTime
	err := r.db.WithContext(ctx).Raw(`
		SELECT MAX(ps.scraped_at)
		FROM price_snapshots ps
		JOIN tracked_flights tf ON tf.id = ps.tracked_flight_id
		WHERE tf.origin = ? AND tf.destination = ? AND tf.flight_date = ?`,
		origin, destination, date.Format("2006-01-02")).
		Row().Scan(&last)
	if err != nil {
		return time.Time{}, err
	}
	if !last.Valid {
		return time.Time{}, repository.ErrNotFound
	}
	return last.Time, nil
}

func trackedFlightModel(f *entity.TrackedFlight) TrackedFlights {
	date := f.FlightDate
	if date.IsZero() {
		date = f.DepartureTime
	}
	return TrackedFlights{
		ID:            f.ID,
		BaseFlightID:  f.BaseFlightID,
		FlightNumber:  f.FlightNumber,
		FlightDate:    datatypes.Date(time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)),
		Origin:        f.Origin,
		Destination:   f.Destination,
		AirlineCode:   f.AirlineCode,
		AirlineNameFa: f.AirlineNameFa,
		AirlineNameEn: f.AirlineNameEn,
		DepartureTime: f.DepartureTime,
		ArrivalTime:   f.ArrivalTime,
		IsActive:      f.IsActive,
		LastTrackedAt: f.LastTrackedAt,
	}
}

// Convert GORM model to domain entity
func (m TrackedFlights) toEntity() *entity.TrackedFlight {
	return &entity.TrackedFlight{
		ID:                          m.ID,
		BaseFlightID:                m.BaseFlightID,
		FlightNumber:                m.FlightNumber,
		FlightDate:                  time.Time(m.FlightDate),
		Origin:                      m.Origin,
		Destination:                 m.Destination,
		AirlineCode:                 m.AirlineCode,
		AirlineNameFa:               m.AirlineNameFa,
		AirlineNameEn:               m.AirlineNameEn,
		DepartureTime:               m.DepartureTime,
		ArrivalTime:                 m.ArrivalTime,
		IsActive:                    m.IsActive,
		LastTrackedAt:               m.LastTrackedAt,
		CurrentLowestPrice:          m.CurrentLowestPrice,
		CurrentLowestPriceProvider:  m.CurrentLowestPriceProvider,
		CurrentLowestPriceUpdatedAt: m.CurrentLowestPriceUpdatedAt,
		CreatedAt:                   m.CreatedAt,
		UpdatedAt:                   m.UpdatedAt,
	}
}

func priceSnapshotModel(s *entity.PriceSnapshot) (PriceSnapshots, error) {
	model := PriceSnapshots{
		ID:                    uuid.NewString(),
		TrackedFlightID:       s.TrackedFlightID,
		Provider:              s.Provider,
		AdultPrice:            s.AdultPrice,
		ChildPrice:            s.ChildPrice,
		InfantPrice:           s.InfantPrice,
		AvailableSeats:        s.AvailableSeats,
		IsAvailable:           s.IsAvailable,
		ScrapedAt:             s.ScrapedAt,
		PriceChangeAmount:     s.PriceChangeAmount,
		PriceChangePercentage: s.PriceChangePercentage,
	}
	if len(s.RawData) > 0 {
		raw, err := json.Marshal(s.RawData)
		if err != nil {
			return model, fmt.Errorf("failed to marshal raw data: %w", err)
		}
		model.RawData = datatypes.JSON(raw)
	}
	return model, nil
}

// Convert GORM model to domain entity
func (m PriceSnapshots) toEntity() entity.PriceSnapshot {
	snap := entity.PriceSnapshot{
		ID:                    m.ID,
		TrackedFlightID:       m.TrackedFlightID,
		Provider:              m.Provider,
		AdultPrice:            m.AdultPrice,
		ChildPrice:            m.ChildPrice,
		InfantPrice:           m.InfantPrice,
		AvailableSeats:        m.AvailableSeats,
		IsAvailable:           m.IsAvailable,
		ScrapedAt:             m.ScrapedAt,
		PriceChangeAmount:     m.PriceChangeAmount,
		PriceChangePercentage: m.PriceChangePercentage,
	}
	if len(m.RawData) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(m.RawData, &raw); err == nil {
			snap.RawData = raw
		}
	}
	return snap
}

// Convert GORM model to domain entity
func (m LowestPriceSnapshots) toEntity() entity.LowestPriceSnapshot {
	return entity.LowestPriceSnapshot{
		ID:                    m.ID,
		TrackedFlightID:       m.TrackedFlightID,
		LowestPrice:           m.LowestPrice,
		Provider:              m.Provider,
		ScrapedAt:             m.ScrapedAt,
		PriceChangeAmount:     m.PriceChangeAmount,
		PriceChangePercentage: m.PriceChangePercentage,
		Comparison:            m.ComparisonData.Data(),
	}
}
