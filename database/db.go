package database

import (
	"context"
	"errors"
	"fmt"

	"foodfinder/config"
	"foodfinder/models"
)

// ErrNotFound is returned when no restaurant matches a lookup.
var ErrNotFound = errors.New("restaurant not found")

// Store is the persistence contract shared by the MongoDB and PostgreSQL backends.
// A limit of zero or less means no limit.
type Store interface {
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	ListRestaurants(ctx context.Context, limit, offset int) ([]models.Restaurant, int64, error)
	// NearbyRestaurants returns restaurants within maxMeters of the point,
	// nearest first.
	NearbyRestaurants(ctx context.Context, longitude, latitude, maxMeters float64, limit int) ([]models.Restaurant, error)
	// SearchByCuisine matches term as a case-insensitive literal substring of
	// the cuisines field.
	SearchByCuisine(ctx context.Context, term string, limit int) ([]models.Restaurant, error)

	InsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error
	// UpsertRestaurants replaces existing restaurants sharing a source id.
	// Restaurants without an id are inserted.
	UpsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error
	EnsureIndexes(ctx context.Context) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connect opens the store selected by cfg.Driver.
func Connect(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(cfg.PostgresURL)
	case config.DriverMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
