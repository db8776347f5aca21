package handlers

import (
	"context"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"foodfinder/database"
	"foodfinder/models"
)

// memStore is an in-memory database.Store used by the handler tests.
type memStore struct {
	mu          sync.Mutex
	restaurants []models.Restaurant
	err         error
	calls       int
	lastLimit   int
	lastMeters  float64
}

var _ database.Store = (*memStore)(nil)

func (s *memStore) track(limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastLimit = limit
	return s.err
}

func (s *memStore) GetRestaurant(_ context.Context, id string) (*models.Restaurant, error) {
	if err := s.track(0); err != nil {
		return nil, err
	}
	for i := range s.restaurants {
		if s.restaurants[i].ID == id {
			r := s.restaurants[i]
			return &r, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) ListRestaurants(_ context.Context, limit, offset int) ([]models.Restaurant, int64, error) {
	if err := s.track(limit); err != nil {
		return nil, 0, err
	}
	total := int64(len(s.restaurants))
	if offset >= len(s.restaurants) {
		return nil, total, nil
	}
	end := min(offset+limit, len(s.restaurants))
	return append([]models.Restaurant(nil), s.restaurants[offset:end]...), total, nil
}

func (s *memStore) NearbyRestaurants(_ context.Context, lon, lat, maxMeters float64, limit int) ([]models.Restaurant, error) {
	if err := s.track(limit); err != nil {
		return nil, err
	}
	s.lastMeters = maxMeters

	type hit struct {
		r models.Restaurant
		d float64
	}
	var hits []hit
	for _, r := range s.restaurants {
		if d := haversineMeters(lat, lon, r.Location.Latitude(), r.Location.Longitude()); d <= maxMeters {
			hits = append(hits, hit{r, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })

	var out []models.Restaurant
	for _, h := range hits {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, h.r)
	}
	return out, nil
}

func (s *memStore) SearchByCuisine(_ context.Context, term string, limit int) ([]models.Restaurant, error) {
	if err := s.track(limit); err != nil {
		return nil, err
	}
	var out []models.Restaurant
	for _, r := range s.restaurants {
		if strings.Contains(strings.ToLower(r.Cuisines), strings.ToLower(term)) {
			out = append(out, r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) InsertRestaurants(_ context.Context, rs []models.Restaurant) error {
	s.restaurants = append(s.restaurants, rs...)
	return nil
}

func (s *memStore) UpsertRestaurants(ctx context.Context, rs []models.Restaurant) error {
	return s.InsertRestaurants(ctx, rs)
}

func (s *memStore) EnsureIndexes(context.Context) error { return nil }
func (s *memStore) Ping(context.Context) error          { return s.err }
func (s *memStore) Close(context.Context) error         { return nil }

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type fakeClassifier struct {
	label    string
	err      error
	calls    int
	gotName  string
	gotBytes string
}

func (c *fakeClassifier) Classify(_ context.Context, filename string, r io.Reader) (string, error) {
	c.calls++
	c.gotName = filename
	data, _ := io.ReadAll(r)
	c.gotBytes = string(data)
	return c.label, c.err
}

func restaurant(id, name, cuisines string, lon, lat float64) models.Restaurant {
	return models.Restaurant{
		ID:         id,
		Name:       name,
		Cuisines:   cuisines,
		Location:   models.NewPoint(lon, lat, models.DefaultAddress, models.DefaultCity),
		PriceRange: models.DefaultPriceRange,
		UserRating: models.UserRating{RatingText: models.DefaultRatingText},
	}
}
