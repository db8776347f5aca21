package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"foodfinder/models"
)

const mongoConnectTimeout = 10 * time.Second

// MongoStore keeps restaurants in a single collection with a 2dsphere index
// on location.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB. A failed ping is logged rather than
// returned so the server can start while the database is still coming up.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		slog.Warn("mongodb ping failed, proceeding", "error", err)
	} else {
		slog.Info("connected to mongodb", "database", database, "collection", collection)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var r models.Restaurant
	err := s.coll.FindOne(ctx, idFilter(id)).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoStore) ListRestaurants(ctx context.Context, limit, offset int) ([]models.Restaurant, int64, error) {
	opts := options.Find().SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	restaurants, err := s.find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("counting restaurants: %w", err)
	}
	return restaurants, total, nil
}

func (s *MongoStore) NearbyRestaurants(ctx context.Context, longitude, latitude, maxMeters float64, limit int) ([]models.Restaurant, error) {
	return s.find(ctx, nearFilter(longitude, latitude, maxMeters), limitOpts(limit))
}

func (s *MongoStore) SearchByCuisine(ctx context.Context, term string, limit int) ([]models.Restaurant, error) {
	return s.find(ctx, cuisineFilter(term), limitOpts(limit))
}

func (s *MongoStore) InsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error {
	if len(restaurants) == 0 {
		return nil
	}
	docs := make([]interface{}, len(restaurants))
	for i := range restaurants {
		docs[i] = restaurants[i]
	}
	if _, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("inserting restaurants: %w", err)
	}
	return nil
}

func (s *MongoStore) UpsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error {
	if len(restaurants) == 0 {
		return nil
	}
	if _, err := s.coll.BulkWrite(ctx, upsertModels(restaurants), options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("upserting restaurants: %w", err)
	}
	return nil
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Restaurant, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	restaurants := []models.Restaurant{}
	if err := cursor.All(ctx, &restaurants); err != nil {
		return nil, err
	}
	return restaurants, nil
}

func limitOpts(limit int) *options.FindOptions {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

// idFilter compares the source id as a string.
func idFilter(id string) bson.M {
	return bson.M{"id": id}
}

// nearFilter sorts by distance through the 2dsphere index; $near returns
// results nearest first.
func nearFilter(longitude, latitude, maxMeters float64) bson.M {
	return bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        models.PointType,
					"coordinates": bson.A{longitude, latitude},
				},
				"$maxDistance": maxMeters,
			},
		},
	}
}

// cuisineFilter escapes term so classifier output is matched literally.
func cuisineFilter(term string) bson.M {
	return bson.M{
		"cuisines": bson.M{
			"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"},
		},
	}
}

func upsertModels(restaurants []models.Restaurant) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, len(restaurants))
	for _, r := range restaurants {
		if r.ID == "" {
			writes = append(writes, mongo.NewInsertOneModel().SetDocument(r))
			continue
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(idFilter(r.ID)).
			SetReplacement(r).
			SetUpsert(true))
	}
	return writes
}
