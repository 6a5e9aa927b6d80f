package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/infrastructure/config"
	"flightprice-service/internal/infrastructure/persistence"
	repo "flightprice-service/internal/interface/repository"
	"flightprice-service/pkg/logger"
)

// defaultAirports are the busiest domestic airports
var defaultAirports = []string{"THR", "MHD", "KIH", "AWZ", "IFN", "SYZ", "BND", "TBZ"}

func main() {
	airports := flag.String("airports", strings.Join(defaultAirports, ","), "comma separated airport codes; every ordered pair is seeded")
	daysAhead := flag.Int("days", 7, "days ahead to track for each route")
	interval := flag.Int("interval", 60, "tracking interval in minutes")
	inactive := flag.Bool("inactive", false, "seed routes as inactive")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	db, err := persistence.NewPostgres(cfg.PostgresURI, 2)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database", "error", err)
	}

	var codes []string
	for _, code := range strings.Split(*airports, ",") {
		if code = strings.ToUpper(strings.TrimSpace(code)); len(code) == 3 {
			codes = append(codes, code)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	routes := repo.NewGormRouteConfigRepository(db)
	seeded := 0
	for _, origin := range codes {
		for _, destination := range codes {
			if origin == destination {
				continue
			}
			route := &entity.RouteConfig{
				Origin:                  origin,
				Destination:             destination,
				IsActive:                !*inactive,
				DaysAhead:               *daysAhead,
				TrackingIntervalMinutes: *interval,
				Settings:                entity.TrackingSettings{NotifyOnPriceDrop: true},
			}
			if err := routes.Upsert(ctx, route); err != nil {
				log.Error("Failed to seed route", "origin", origin, "destination", destination, "error", err)
				continue
			}
			seeded++
		}
	}

	log.Info("Seeded tracked routes", "count", seeded, "airports", len(codes))
}
