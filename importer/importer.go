package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"foodfinder/models"
)

// DefaultBatchSize is the number of restaurants written per store call.
const DefaultBatchSize = 200

var (
	ErrEmptyDataset  = errors.New("invalid JSON structure: expected a non-empty array at the root")
	ErrNoRestaurants = errors.New("no valid restaurants found in the JSON file")
)

// Writer is the subset of database.Store the importer needs.
type Writer interface {
	InsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error
	UpsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error
	EnsureIndexes(ctx context.Context) error
}

type Options struct {
	BatchSize int
	// Upsert replaces restaurants that share a source id instead of adding
	// duplicates.
	Upsert bool
	// DryRun transforms the file without writing anything.
	DryRun bool
}

// Result summarizes a finished import.
type Result struct {
	Imported int
	Skipped  int
	Batches  int
}

type rawEntry struct {
	Restaurants json.RawMessage `json:"restaurants"`
}

type rawWrapper struct {
	Restaurant *rawRestaurant `json:"restaurant"`
}

type rawRestaurant struct {
	ID                looseValue     `json:"id"`
	Name              looseValue     `json:"name"`
	Cuisines          looseValue     `json:"cuisines"`
	Location          *rawLocation   `json:"location"`
	AverageCostForTwo looseValue     `json:"average_cost_for_two"`
	PriceRange        looseValue     `json:"price_range"`
	UserRating        *rawUserRating `json:"user_rating"`
	FeaturedImage     looseValue     `json:"featured_image"`
	MenuURL           looseValue     `json:"menu_url"`
}

type rawLocation struct {
	Longitude looseValue `json:"longitude"`
	Latitude  looseValue `json:"latitude"`
	Address   looseValue `json:"address"`
	City      looseValue `json:"city"`
}

type rawUserRating struct {
	AggregateRating looseValue `json:"aggregate_rating"`
	RatingText      looseValue `json:"rating_text"`
	Votes           looseValue `json:"votes"`
}

// ImportFile reads path, transforms it and writes the result to w.
func ImportFile(ctx context.Context, w Writer, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	restaurants, skipped, err := Transform(data)
	if err != nil {
		return nil, err
	}
	slog.Info("dataset transformed", "file", path, "valid", len(restaurants), "skipped", skipped)

	res := &Result{Imported: len(restaurants), Skipped: skipped}
	if opts.DryRun {
		return res, nil
	}

	if err := w.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	res.Batches, err = Load(ctx, w, restaurants, opts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Transform flattens the nested dataset into normalized restaurants. Wrappers
// without a restaurant or without a location are skipped and counted; any
// structural problem with the root is returned as an error.
func Transform(data []byte) ([]models.Restaurant, int, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil || len(entries) == 0 {
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrEmptyDataset, err)
		}
		return nil, 0, ErrEmptyDataset
	}

	var restaurants []models.Restaurant
	skipped := 0

	for i, entryData := range entries {
		var entry rawEntry
		if err := json.Unmarshal(entryData, &entry); err != nil {
			// Non-object entries carry no restaurants array.
			continue
		}

		var wrappers []json.RawMessage
		if err := json.Unmarshal(entry.Restaurants, &wrappers); err != nil {
			continue
		}

		for j, wrapperData := range wrappers {
			var wrapper rawWrapper
			if err := json.Unmarshal(wrapperData, &wrapper); err != nil ||
				wrapper.Restaurant == nil || wrapper.Restaurant.Location == nil {
				slog.Warn("skipping invalid restaurant entry", "entry", i, "index", j)
				skipped++
				continue
			}
			restaurants = append(restaurants, normalize(wrapper.Restaurant))
		}
	}

	if len(restaurants) == 0 {
		return nil, skipped, ErrNoRestaurants
	}
	return restaurants, skipped, nil
}

// Load writes restaurants in sequential batches and stops at the first
// failure. Batches already written are left in place.
func Load(ctx context.Context, w Writer, restaurants []models.Restaurant, opts Options) (int, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	write := w.InsertRestaurants
	if opts.Upsert {
		write = w.UpsertRestaurants
	}

	batches := 0
	for start := 0; start < len(restaurants); start += size {
		end := min(start+size, len(restaurants))
		if err := write(ctx, restaurants[start:end]); err != nil {
			return batches, fmt.Errorf("writing batch %d (records %d-%d): %w", batches+1, start, end-1, err)
		}
		batches++
		slog.Debug("batch written", "batch", batches, "records", end-start)
	}
	return batches, nil
}

func normalize(r *rawRestaurant) models.Restaurant {
	out := models.Restaurant{
		ID:                strings.TrimSpace(r.ID.text()),
		Name:              orDefault(r.Name.text(), models.DefaultName),
		Cuisines:          orDefault(r.Cuisines.text(), models.DefaultCuisines),
		Location: models.NewPoint(
			finite(r.Location.Longitude.float()),
			finite(r.Location.Latitude.float()),
			orDefault(r.Location.Address.text(), models.DefaultAddress),
			orDefault(r.Location.City.text(), models.DefaultCity),
		),
		AverageCostForTwo: finite(r.AverageCostForTwo.float()),
		PriceRange:        r.PriceRange.int(),
		UserRating:        models.UserRating{RatingText: models.DefaultRatingText},
		FeaturedImage:     r.FeaturedImage.text(),
		MenuURL:           r.MenuURL.text(),
	}

	if out.PriceRange == 0 {
		out.PriceRange = models.DefaultPriceRange
	}

	if ur := r.UserRating; ur != nil {
		out.UserRating.AggregateRating = finite(ur.AggregateRating.float())
		out.UserRating.Votes = ur.Votes.int()
		out.UserRating.RatingText = orDefault(ur.RatingText.text(), models.DefaultRatingText)
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// finite maps NaN and infinities to 0; neither is storable as a coordinate.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
