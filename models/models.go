package models

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// Default values applied to imported restaurants when the source omits a field.
const (
	DefaultName       = "Unknown"
	DefaultCuisines   = "Not specified"
	DefaultAddress    = "No address provided"
	DefaultCity       = "Unknown"
	DefaultPriceRange = 1
	DefaultRatingText = "No Rating"
	PointType         = "Point"
)

// Restaurant is the canonical restaurant document. The importer writes it,
// both store backends persist it and the API returns it unchanged.
type Restaurant struct {
	ID                string     `json:"id,omitempty" bson:"id,omitempty"`
	Name              string     `json:"name" bson:"name"`
	Cuisines          string     `json:"cuisines" bson:"cuisines"`
	Location          Location   `json:"location" bson:"location"`
	AverageCostForTwo float64    `json:"average_cost_for_two" bson:"average_cost_for_two"`
	PriceRange        int        `json:"price_range" bson:"price_range"`
	UserRating        UserRating `json:"user_rating" bson:"user_rating"`
	FeaturedImage     string     `json:"featured_image" bson:"featured_image"`
	MenuURL           string     `json:"menu_url" bson:"menu_url"`
}

// Location is a GeoJSON point plus the free-text address fields.
// Coordinates are [longitude, latitude].
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	Address     string    `json:"address" bson:"address"`
	City        string    `json:"city" bson:"city"`
}

// NewPoint builds a Location in GeoJSON order.
func NewPoint(longitude, latitude float64, address, city string) Location {
	return Location{
		Type:        PointType,
		Coordinates: []float64{longitude, latitude},
		Address:     address,
		City:        city,
	}
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[0]
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}

type UserRating struct {
	AggregateRating float64 `json:"aggregate_rating" bson:"aggregate_rating"`
	RatingText      string  `json:"rating_text" bson:"rating_text"`
	Votes           int     `json:"votes" bson:"votes"`
}

// UnmarshalBSON accepts ratings stored either as numbers or as numeric
// strings, so documents loaded by older tooling still decode.
func (u *UserRating) UnmarshalBSON(data []byte) error {
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return err
	}

	u.AggregateRating = rawNumber(raw.Lookup("aggregate_rating"))
	u.Votes = int(rawNumber(raw.Lookup("votes")))
	u.RatingText, _ = raw.Lookup("rating_text").StringValueOK()
	return nil
}

func rawNumber(v bson.RawValue) float64 {
	switch v.Type {
	case bson.TypeDouble:
		return v.Double()
	case bson.TypeInt32:
		return float64(v.Int32())
	case bson.TypeInt64:
		return float64(v.Int64())
	case bson.TypeString:
		f, err := strconv.ParseFloat(v.StringValue(), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
