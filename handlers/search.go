package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"foodfinder/database"
	"foodfinder/models"
)

const (
	// ImageField is the multipart field clients upload the photo in.
	ImageField = "image"

	metersPerKm = 1000

	missingNearbyMessage = "Latitude, longitude, and distance are required!"
)

var (
	ErrMissingNearbyParams = errors.New("latitude, longitude, and distance are required")
	errInvalidLatitude     = errors.New("latitude must be a number between -90 and 90")
	errInvalidLongitude    = errors.New("longitude must be a number between -180 and 180")
	errInvalidDistance     = errors.New("distance must be a non-negative number of kilometers")
)

// Classifier maps an uploaded image to a food label.
type Classifier interface {
	Classify(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Options carries the limits shared by the restaurant handlers.
type Options struct {
	MaxPageSize    int
	MaxResults     int
	UploadDir      string
	MaxUploadBytes int64
}

// NearbyParams is a validated proximity query.
type NearbyParams struct {
	Latitude   float64
	Longitude  float64
	DistanceKm float64
}

// Meters converts the radius for the store query.
func (p NearbyParams) Meters() float64 {
	return p.DistanceKm * metersPerKm
}

type NearbyResponse struct {
	Total       int                 `json:"total"`
	Restaurants []models.Restaurant `json:"restaurants"`
}

type ImageSearchResponse struct {
	DetectedFood string              `json:"detectedFood"`
	Total        int                 `json:"total"`
	Restaurants  []models.Restaurant `json:"restaurants"`
}

// ParseNearbyParams requires latitude, longitude and distance. It returns
// ErrMissingNearbyParams when any is absent and a validation error when one
// is not a usable number.
func ParseNearbyParams(query url.Values) (NearbyParams, error) {
	latStr := strings.TrimSpace(query.Get("latitude"))
	lonStr := strings.TrimSpace(query.Get("longitude"))
	distStr := strings.TrimSpace(query.Get("distance"))

	if latStr == "" || lonStr == "" || distStr == "" {
		return NearbyParams{}, ErrMissingNearbyParams
	}

	var p NearbyParams
	var err error

	if p.Latitude, err = strconv.ParseFloat(latStr, 64); err != nil || p.Latitude < -90 || p.Latitude > 90 {
		return NearbyParams{}, errInvalidLatitude
	}
	if p.Longitude, err = strconv.ParseFloat(lonStr, 64); err != nil || p.Longitude < -180 || p.Longitude > 180 {
		return NearbyParams{}, errInvalidLongitude
	}
	// NaN fails every comparison, so check it explicitly.
	if p.DistanceKm, err = strconv.ParseFloat(distStr, 64); err != nil || !(p.DistanceKm >= 0) {
		return NearbyParams{}, errInvalidDistance
	}
	return p, nil
}

// NearbyHandler returns restaurants within the requested radius, nearest first.
func NearbyHandler(store database.Store, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := ParseNearbyParams(r.URL.Query())
		if errors.Is(err, ErrMissingNearbyParams) {
			WriteError(w, r, http.StatusBadRequest, missingNearbyMessage, nil)
			return
		}
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "Invalid nearby search parameters", err)
			return
		}

		restaurants, err := store.NearbyRestaurants(r.Context(), p.Longitude, p.Latitude, p.Meters(), opts.MaxResults)
		if err != nil {
			slog.Error("nearby search failed",
				"latitude", p.Latitude, "longitude", p.Longitude, "distance_km", p.DistanceKm, "error", err)
			WriteError(w, r, http.StatusInternalServerError, "Server Error", err)
			return
		}
		if restaurants == nil {
			restaurants = []models.Restaurant{}
		}

		RespondJSON(w, http.StatusOK, NearbyResponse{Total: len(restaurants), Restaurants: restaurants})
	}
}

// ImageSearchHandler classifies an uploaded photo and returns restaurants
// whose cuisines mention the detected food. The upload is written to
// opts.UploadDir for the duration of the request and removed afterwards.
func ImageSearchHandler(store database.Store, classifier Classifier, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if opts.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, opts.MaxUploadBytes)
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(ImageField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, r, http.StatusBadRequest, "Image too large", err)
				return
			}
			WriteError(w, r, http.StatusBadRequest, "No image uploaded!", nil)
			return
		}
		defer file.Close()

		path, err := saveUpload(opts.UploadDir, header.Filename, file)
		if err != nil {
			slog.Error("saving upload failed", "error", err)
			WriteError(w, r, http.StatusInternalServerError, "Error processing image", err)
			return
		}
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("removing upload failed", "path", path, "error", err)
			}
		}()

		label, err := classifyFile(r.Context(), classifier, path, header.Filename)
		if err != nil {
			slog.Error("image classification failed", "file", header.Filename, "error", err)
			WriteError(w, r, http.StatusInternalServerError, "Error processing image", err)
			return
		}

		restaurants, err := store.SearchByCuisine(r.Context(), label, opts.MaxResults)
		if err != nil {
			slog.Error("cuisine search failed", "detected_food", label, "error", err)
			WriteError(w, r, http.StatusInternalServerError, "Error processing image", err)
			return
		}
		if restaurants == nil {
			restaurants = []models.Restaurant{}
		}

		slog.Debug("image search", "detected_food", label, "matches", len(restaurants))
		RespondJSON(w, http.StatusOK, ImageSearchResponse{
			DetectedFood: label,
			Total:        len(restaurants),
			Restaurants:  restaurants,
		})
	}
}

// uploadName is timestamp-qualified with a random suffix; only the
// extension of the client-supplied name is kept.
func uploadName(original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	return fmt.Sprintf("%s-%d-%s%s", ImageField, now.UnixMilli(), uuid.NewString()[:8], ext)
}

func saveUpload(dir, original string, src multipart.File) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	path := filepath.Join(dir, uploadName(original, time.Now()))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing upload file: %w", err)
	}
	return path, nil
}

func classifyFile(ctx context.Context, classifier Classifier, path, original string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return classifier.Classify(ctx, original, f)
}
