package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/pkg/logger"
)

func dropCycle(provider string, prev, cur int64, at time.Time) CycleResult {
	flight := trackedFlight()
	flight.ID = "tf-1"
	snap := &entity.PriceSnapshot{
		TrackedFlightID: flight.ID,
		Provider:        provider,
		AdultPrice:      cur,
		AvailableSeats:  2,
		ScrapedAt:       at,
	}
	if prev > 0 {
		amount := cur - prev
		pct := float64(amount) / float64(prev) * 100
		snap.PriceChangeAmount = &amount
		snap.PriceChangePercentage = &pct
	}
	return CycleResult{
		Flight:    &flight,
		Snapshots: []SnapshotResult{{Flight: &flight, Snapshot: snap}},
	}
}

func TestNotifyDropsThreshold(t *testing.T) {
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		prev     int64
		cur      int64
		wantSent int
	}{
		{"drop above threshold", 100, 80, 1},
		{"drop equal to threshold", 100, 90, 1},
		{"drop below threshold", 100, 95, 0},
		{"price rise", 100, 130, 0},
		{"first snapshot", 0, 80, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			n := NewAlertNotifier(pub, nil, nil, 10, time.Hour, nil, logger.NewNopLogger(), nil)

			sent := n.NotifyDrops(context.Background(), []CycleResult{dropCycle("alibaba", tt.prev, tt.cur, at)})

			if sent != tt.wantSent || pub.count() != tt.wantSent {
				t.Errorf("Expected %d alerts, got %d (published %d)", tt.wantSent, sent, pub.count())
			}
		})
	}
}

func TestNotifyDropsAlertContent(t *testing.T) {
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	dir := NewFlightDirectory(
		&fakeAirlineRepo{airlines: []*entity.Airline{{Code: "IR", NameFa: "ایران ایر", NameEn: "Iran Air"}}},
		&fakeAirportRepo{airports: []*entity.Airport{{Code: "THR", CityFa: "تهران"}, {Code: "MHD", CityFa: "مشهد"}}},
		logger.NewNopLogger(),
	)
	if err := dir.Load(context.Background()); err != nil {
		t.Fatalf("Expected directory to load, got %v", err)
	}
	n := NewAlertNotifier(pub, nil, dir, 10, time.Hour, nil, logger.NewNopLogger(), nil)

	n.NotifyDrops(context.Background(), []CycleResult{dropCycle("alibaba", 1250000, 1000000, at)})

	if pub.count() != 1 {
		t.Fatalf("Expected 1 alert, got %d", pub.count())
	}
	alert := pub.alerts[0]
	if alert.PreviousPrice != 1250000 || alert.CurrentPrice != 1000000 {
		t.Errorf("Expected 1250000 -> 1000000, got %d -> %d", alert.PreviousPrice, alert.CurrentPrice)
	}
	if alert.DropPercentage != 20 {
		t.Errorf("Expected drop 20%%, got %v", alert.DropPercentage)
	}
	if alert.ID == "" || alert.Type != entity.PriceDropAlertType {
		t.Errorf("Expected id and type set, got %q %q", alert.ID, alert.Type)
	}
	for _, want := range []string{"ایران ایر", "تهران", "مشهد", "1,250,000", "1,000,000"} {
		if !strings.Contains(alert.Text, want) {
			t.Errorf("Expected alert text to contain %q, got %q", want, alert.Text)
		}
	}
}

func TestNotifyDropsDedupe(t *testing.T) {
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("same snapshot sent once", func(t *testing.T) {
		pub := &fakePublisher{}
		n := NewAlertNotifier(pub, &fakeDedupe{}, nil, 10, time.Hour, nil, logger.NewNopLogger(), nil)

		n.NotifyDrops(ctx, []CycleResult{dropCycle("alibaba", 100, 80, at)})
		n.NotifyDrops(ctx, []CycleResult{dropCycle("alibaba", 100, 80, at)})
		n.NotifyDrops(ctx, []CycleResult{dropCycle("alibaba", 80, 60, at.Add(time.Hour))})

		if pub.count() != 2 {
			t.Errorf("Expected 2 alerts, got %d", pub.count())
		}
	})

	t.Run("dedupe failure still sends", func(t *testing.T) {
		pub := &fakePublisher{}
		n := NewAlertNotifier(pub, &fakeDedupe{err: errors.New("redis down")}, nil, 10, time.Hour, nil, logger.NewNopLogger(), nil)

		sent := n.NotifyDrops(ctx, []CycleResult{dropCycle("alibaba", 100, 80, at)})
		if sent != 1 {
			t.Errorf("Expected 1 alert, got %d", sent)
		}
	})
}

func TestNotifyDropsPublishFailure(t *testing.T) {
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	pub := &fakePublisher{err: errors.New("broker down")}
	n := NewAlertNotifier(pub, nil, nil, 10, time.Hour, nil, logger.NewNopLogger(), nil)

	sent := n.NotifyDrops(context.Background(), []CycleResult{
		dropCycle("alibaba", 100, 80, at),
		dropCycle("mrbilit", 100, 70, at),
	})
	if sent != 0 {
		t.Errorf("Expected 0 alerts sent, got %d", sent)
	}
}

func TestEnginePublishesDropsFromLiveSearch(t *testing.T) {
	repo := newMemFlightRepo()
	price := int64(100)
	gw := newFakeGateway().with("alibaba", func(ctx context.Context, req entity.ProviderRequest) ([]entity.RawOffer, error) {
		o := offer("alibaba", price)
		o.ScrapedAt = time.Now()
		return []entity.RawOffer{o}, nil
	})
	pub := &fakePublisher{}
	log := logger.NewNopLogger()
	n := NewAlertNotifier(pub, nil, nil, 10, time.Hour, nil, log, nil)
	e := newTestEngine(repo, gw, AggregationConfig{}, WithAlertNotifier(n))

	q := testQuery()
	q.SkipCache = true
	e.Search(context.Background(), q)
	price = 85
	e.Search(context.Background(), q)

	if pub.count() != 1 {
		t.Fatalf("Expected 1 alert, got %d", pub.count())
	}
	if pub.alerts[0].CurrentPrice != 85 {
		t.Errorf("Expected alert at 85, got %d", pub.alerts[0].CurrentPrice)
	}
}

func TestFlightDirectoryEnrich(t *testing.T) {
	dir := NewFlightDirectory(
		&fakeAirlineRepo{airlines: []*entity.Airline{
			{Code: "IR", NameFa: "ایران ایر", NameEn: "Iran Air", LogoURL: "ir.png"},
			{Code: "W5", NameFa: "ماهان", NameEn: "Mahan Air"},
		}},
		&fakeAirportRepo{airports: []*entity.Airport{{Code: "THR", CityFa: "تهران"}}},
		logger.NewNopLogger(),
	)
	if err := dir.Load(context.Background()); err != nil {
		t.Fatalf("Expected directory to load, got %v", err)
	}

	flights := []entity.GroupedFlight{
		{Airline: entity.AirlineInfo{Code: "ir"}, Route: entity.RouteInfo{Origin: "THR", Destination: "KIH"}},
		{Airline: entity.AirlineInfo{NameFa: "ماهان"}},
		{Airline: entity.AirlineInfo{Code: "IR", NameFa: "provider name"}},
	}
	dir.Enrich(flights)

	if got := flights[0].Airline; got.NameEn != "Iran Air" || got.LogoURL != "ir.png" {
		t.Errorf("Expected airline filled by code, got %+v", got)
	}
	if flights[0].Route.OriginCityFa != "تهران" || flights[0].Route.DestinationCityFa != "" {
		t.Errorf("Expected only known cities filled, got %+v", flights[0].Route)
	}
	if got := flights[1].Airline; got.Code != "W5" {
		t.Errorf("Expected airline resolved by name, got %+v", got)
	}
	if flights[2].Airline.NameFa != "provider name" {
		t.Errorf("Expected provider values kept, got %q", flights[2].Airline.NameFa)
	}
}

func TestFlightDirectoryLoadError(t *testing.T) {
	dir := NewFlightDirectory(&fakeAirlineRepo{err: errors.New("db down")}, &fakeAirportRepo{}, logger.NewNopLogger())
	if err := dir.Load(context.Background()); err == nil {
		t.Error("Expected error, got nil")
	}
	if _, ok := dir.Airport("THR"); ok {
		t.Error("Expected empty directory after failed load")
	}
}
