package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"foodfinder/database"
	"foodfinder/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// PageParams holds the normalized pagination query.
type PageParams struct {
	Page   int
	Limit  int
	Offset int
}

// ListResponse is the body of GET /api/restaurants.
type ListResponse struct {
	TotalRestaurants int64               `json:"totalRestaurants"`
	CurrentPage      int                 `json:"currentPage"`
	TotalPages       int                 `json:"totalPages"`
	Restaurants      []models.Restaurant `json:"restaurants"`
}

// ParsePageParams reads page and limit, falling back to the defaults for
// missing, non-numeric or non-positive values. A positive maxLimit caps limit.
// Offset saturates at math.MaxInt.
func ParsePageParams(query url.Values, maxLimit int) PageParams {
	p := PageParams{Page: DefaultPage, Limit: DefaultLimit}

	if n, err := strconv.Atoi(query.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(query.Get("limit")); err == nil && n > 0 {
		p.Limit = n
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}

	// Saturate instead of overflowing so huge pages stay past the end.
	if p.Page-1 > math.MaxInt/p.Limit {
		p.Offset = math.MaxInt
	} else {
		p.Offset = (p.Page - 1) * p.Limit
	}
	return p
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// GetRestaurantHandler looks a restaurant up by its source id.
func GetRestaurantHandler(store database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		restaurant, err := store.GetRestaurant(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			slog.Debug("no matching restaurant", "id", id)
			WriteError(w, r, http.StatusNotFound, "Restaurant Not Found", nil)
			return
		}
		if err != nil {
			slog.Error("get restaurant failed", "id", id, "error", err)
			WriteError(w, r, http.StatusInternalServerError, "Server Error", err)
			return
		}

		RespondJSON(w, http.StatusOK, restaurant)
	}
}

// ListRestaurantsHandler serves one page of the full collection in store order.
func ListRestaurantsHandler(store database.Store, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := ParsePageParams(r.URL.Query(), opts.MaxPageSize)

		restaurants, total, err := store.ListRestaurants(r.Context(), p.Limit, p.Offset)
		if err != nil {
			slog.Error("list restaurants failed", "page", p.Page, "limit", p.Limit, "error", err)
			WriteError(w, r, http.StatusInternalServerError, "Server Error", err)
			return
		}
		if restaurants == nil {
			restaurants = []models.Restaurant{}
		}

		RespondJSON(w, http.StatusOK, ListResponse{
			TotalRestaurants: total,
			CurrentPage:      p.Page,
			TotalPages:       TotalPages(total, p.Limit),
			Restaurants:      restaurants,
		})
	}
}
