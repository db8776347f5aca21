package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodfinder/config"
	"foodfinder/database"
	"foodfinder/handlers"
	"foodfinder/models"
)

type stubStore struct {
	restaurants map[string]models.Restaurant
	pingErr     error
}

var _ database.Store = (*stubStore)(nil)

func (s *stubStore) GetRestaurant(_ context.Context, id string) (*models.Restaurant, error) {
	r, ok := s.restaurants[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &r, nil
}

func (s *stubStore) ListRestaurants(_ context.Context, _, _ int) ([]models.Restaurant, int64, error) {
	out := make([]models.Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (s *stubStore) NearbyRestaurants(context.Context, float64, float64, float64, int) ([]models.Restaurant, error) {
	return nil, nil
}

func (s *stubStore) SearchByCuisine(context.Context, string, int) ([]models.Restaurant, error) {
	return nil, nil
}

func (s *stubStore) InsertRestaurants(context.Context, []models.Restaurant) error { return nil }
func (s *stubStore) UpsertRestaurants(context.Context, []models.Restaurant) error { return nil }
func (s *stubStore) EnsureIndexes(context.Context) error                          { return nil }
func (s *stubStore) Ping(context.Context) error                                   { return s.pingErr }
func (s *stubStore) Close(context.Context) error                                  { return nil }

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, string, io.Reader) (string, error) {
	return "pizza", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:       0,
		LogLevel:   "info",
		Classifier: config.ClassifierConfig{Timeout: time.Second},
		Upload:     config.UploadConfig{Dir: "", MaxBytes: 1 << 20},
		Limits:     config.LimitsConfig{MaxResults: 50, MaxPageSize: 20},
		Server: config.ServerConfig{
			RateLimit:       100,
			RateLimitBurst:  200,
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Second,
			ShutdownTimeout: time.Second,
		},
	}
}

func newTestServer(store *stubStore) *Server {
	if store == nil {
		store = &stubStore{}
	}
	return New(testConfig(), store, stubClassifier{})
}

func TestNew(t *testing.T) {
	s := newTestServer(nil)

	require.NotNil(t, s)
	assert.NotNil(t, s.httpServer)
	assert.NotNil(t, s.rateLimiter)
	assert.Equal(t, ":0", s.httpServer.Addr)
	assert.False(t, s.isReady())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		pingErr    error
		wantStatus int
		wantState  string
	}{
		{name: "not started", ready: false, wantStatus: http.StatusServiceUnavailable, wantState: "not_ready"},
		{name: "store down", ready: true, pingErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantState: "not_ready"},
		{name: "ready", ready: true, wantStatus: http.StatusOK, wantState: "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubStore{pingErr: tt.pingErr})
			s.SetReady(tt.ready)

			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			require.Equal(t, tt.wantStatus, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Status)
		})
	}
}

func TestRoutes(t *testing.T) {
	store := &stubStore{restaurants: map[string]models.Restaurant{
		"42": {ID: "42", Name: "Pizza Palace", Cuisines: "Pizza"},
	}}
	h := newTestServer(store).Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "get by id", method: http.MethodGet, path: "/api/restaurantss/42", wantStatus: http.StatusOK},
		{name: "get by id alias", method: http.MethodGet, path: "/api/restaurants/42", wantStatus: http.StatusOK},
		{name: "get unknown id", method: http.MethodGet, path: "/api/restaurantss/7", wantStatus: http.StatusNotFound},
		{name: "list", method: http.MethodGet, path: "/api/restaurants", wantStatus: http.StatusOK},
		{name: "nearby without params", method: http.MethodGet, path: "/api/nearby", wantStatus: http.StatusBadRequest},
		{name: "image search without body", method: http.MethodPost, path: "/api/image-search", wantStatus: http.StatusBadRequest},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "wrong method", method: http.MethodPost, path: "/api/nearby", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRoutes_GetByIDBody(t *testing.T) {
	store := &stubStore{restaurants: map[string]models.Restaurant{
		"42": {ID: "42", Name: "Pizza Palace", Cuisines: "Pizza"},
	}}
	h := newTestServer(store).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/restaurantss/42", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got models.Restaurant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Pizza Palace", got.Name)
	_, err := uuid.Parse(w.Header().Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestCORS(t *testing.T) {
	h := newTestServer(nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/restaurants", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestShutdown_MarksNotReady(t *testing.T) {
	s := newTestServer(nil)
	s.SetReady(true)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, s.isReady())
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := newTestServer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestErrorBodyCarriesRequestID(t *testing.T) {
	h := newTestServer(nil).Handler()

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/api/restaurantss/missing", nil)
	req.Header.Set("X-Request-Id", id)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Restaurant Not Found", resp.Message)
	assert.Equal(t, id, resp.RequestID)
}
