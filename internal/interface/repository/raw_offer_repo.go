package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flightprice-service/internal/domain/entity"
	"flightprice-service/internal/domain/repository"
	"flightprice-service/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRawOfferRepository implements RawOfferRepository
type MongoRawOfferRepository struct {
	collection *mongo.Collection
	location   *time.Location
}

// NewMongoRawOfferRepository creates a new raw offer archive. loc is the zone
// flight keys take their date in.
func NewMongoRawOfferRepository(db *mongo.Database, loc *time.Location) repository.RawOfferRepository {
	collection := db.Collection("raw_offers")

	// Create unique index on offerKey
	ctx := context.Background()
	indexModel := mongo.IndexModel{
		Keys:    bson.M{"offerKey": 1},
		Options: options.Index().SetUnique(true),
	}
	collection.Indexes().CreateOne(ctx, indexModel)

	// Create index on route and departure for queries
	routeIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "origin", Value: 1}, {Key: "destination", Value: 1}, {Key: "departureTime", Value: 1}},
	}
	collection.Indexes().CreateOne(ctx, routeIndex)

	return &MongoRawOfferRepository{
		collection: collection,
		location:   loc,
	}
}

// UpsertMany stores offers keyed by provider, flight and offer id. A repeated
// offer keeps its first createdAt and takes the latest values.
func (r *MongoRawOfferRepository) UpsertMany(ctx context.Context, offers []*entity.RawOffer) error {
	if len(offers) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(offers))
	for _, offer := range offers {
		offer.OfferKey = offerKey(offer, r.location)
		offer.UpdatedAt = now

		updateDoc := bson.M{
			"offerKey":          offer.OfferKey,
			"provider":          offer.Provider,
			"offerId":           offer.OfferID,
			"flightNumber":      offer.FlightNumber,
			"airlineCode":       offer.AirlineCode,
			"airlineName":       offer.AirlineName,
			"airlineNameEn":     offer.AirlineNameEn,
			"airlineLogo":       offer.AirlineLogo,
			"origin":            offer.Origin,
			"destination":       offer.Destination,
			"departureTime":     offer.DepartureTime,
			"arrivalTime":       offer.ArrivalTime,
			"originCityFa":      offer.OriginCityFa,
			"destinationCityFa": offer.DestinationCityFa,
			"durationMinutes":   offer.DurationMinutes,
			"stops":             offer.Stops,
			"price":             offer.Price,
			"childPrice":        offer.ChildPrice,
			"infantPrice":       offer.InfantPrice,
			"currency":          offer.Currency,
			"capacity":          offer.Capacity,
			"cabinClass":        offer.CabinClass,
			"bookingClass":      offer.BookingClass,
			"ticketType":        offer.TicketType,
			"baggageKg":         offer.BaggageKg,
			"isRefundable":      offer.IsRefundable,
			"isCharter":         offer.IsCharter,
			"scrapedAt":         offer.ScrapedAt,
			"updatedAt":         offer.UpdatedAt,
		}

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"offerKey": offer.OfferKey}).
			SetUpdate(bson.M{"$set": updateDoc, "$setOnInsert": bson.M{"createdAt": now}}).
			SetUpsert(true))
	}

	_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert raw offers: %w", err)
	}
	return nil
}

// FindByRoute returns the archived offers departing on the date
func (r *MongoRawOfferRepository) FindByRoute(ctx context.Context, origin, destination string, date time.Time) ([]*entity.RawOffer, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	filter := bson.M{
		"origin":        strings.ToUpper(origin),
		"destination":   strings.ToUpper(destination),
		"departureTime": bson.M{"$gte": start, "$lt": start.Add(24 * time.Hour)},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"price": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var offers []*entity.RawOffer
	if err := cursor.All(ctx, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func offerKey(o *entity.RawOffer, loc *time.Location) string {
	airline := o.AirlineName
	if strings.TrimSpace(airline) == "" {
		airline = o.AirlineCode
	}
	key := utils.NewFlightKey(airline, o.FlightNumber, o.DepartureTime, o.Origin, o.Destination, loc)
	base := key.BaseFlightID()
	id := o.OfferID
	if id == "" {
		id = utils.OfferID(o.Origin, o.Destination, key.Date, o.IsCharter, o.AirlineCode, o.FlightNumber, o.BookingClass, o.CabinClass)
	}
	return o.Provider + ":" + base + ":" + id
}
