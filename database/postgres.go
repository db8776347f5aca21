package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"

	"foodfinder/models"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE TABLE IF NOT EXISTS restaurants (
	pk                   BIGSERIAL PRIMARY KEY,
	id                   TEXT,
	name                 TEXT NOT NULL,
	cuisines             TEXT NOT NULL,
	address              TEXT NOT NULL,
	city                 TEXT NOT NULL,
	longitude            DOUBLE PRECISION NOT NULL,
	latitude             DOUBLE PRECISION NOT NULL,
	geo                  GEOGRAPHY(Point, 4326) NOT NULL,
	average_cost_for_two DOUBLE PRECISION NOT NULL DEFAULT 0,
	price_range          INTEGER NOT NULL DEFAULT 1,
	aggregate_rating     DOUBLE PRECISION NOT NULL DEFAULT 0,
	rating_text          TEXT NOT NULL DEFAULT 'No Rating',
	votes                INTEGER NOT NULL DEFAULT 0,
	featured_image       TEXT NOT NULL DEFAULT '',
	menu_url             TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS restaurants_geo_idx ON restaurants USING GIST (geo);
CREATE INDEX IF NOT EXISTS restaurants_id_idx ON restaurants (id);
`

const selectFields = "COALESCE(r.id, ''), r.name, r.cuisines, r.address, r.city, r.longitude, r.latitude, r.average_cost_for_two, r.price_range, r.aggregate_rating, r.rating_text, r.votes, r.featured_image, r.menu_url"

const insertSQL = `
	INSERT INTO restaurants (id, name, cuisines, address, city, longitude, latitude, geo,
		average_cost_for_two, price_range, aggregate_rating, rating_text, votes, featured_image, menu_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography,
		$8, $9, $10, $11, $12, $13, $14)
`

// PostgresStore keeps restaurants in a PostGIS table with a GIST index on a
// geography column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection pool. As with MongoStore, a failed
// ping only produces a warning.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Warn("postgres ping failed, proceeding", "error", err)
	} else {
		slog.Info("connected to postgres")
	}

	// Serverless Postgres suspends idle compute, so don't hold idle connections.
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(10)

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectFields+" FROM restaurants r WHERE r.id = $1 ORDER BY r.pk LIMIT 1", id)
	r, err := scanRestaurant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRestaurants(ctx context.Context, limit, offset int) ([]models.Restaurant, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM restaurants").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting restaurants: %w", err)
	}

	query, args := buildListQuery(limit, offset)
	restaurants, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return restaurants, total, nil
}

func (s *PostgresStore) NearbyRestaurants(ctx context.Context, longitude, latitude, maxMeters float64, limit int) ([]models.Restaurant, error) {
	query, args := buildNearbyQuery(longitude, latitude, maxMeters, limit)
	return s.query(ctx, query, args...)
}

func (s *PostgresStore) SearchByCuisine(ctx context.Context, term string, limit int) ([]models.Restaurant, error) {
	query, args := buildCuisineQuery(term, limit)
	return s.query(ctx, query, args...)
}

func (s *PostgresStore) InsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error {
	return s.write(ctx, restaurants, false)
}

func (s *PostgresStore) UpsertRestaurants(ctx context.Context, restaurants []models.Restaurant) error {
	return s.write(ctx, restaurants, true)
}

func (s *PostgresStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close(_ context.Context) error {
	return s.db.Close()
}

// write inserts the batch in one transaction. With replace set, rows sharing
// a source id are deleted first.
func (s *PostgresStore) write(ctx context.Context, restaurants []models.Restaurant, replace bool) error {
	if len(restaurants) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range restaurants {
		if replace && r.ID != "" {
			if _, err := tx.ExecContext(ctx, "DELETE FROM restaurants WHERE id = $1", r.ID); err != nil {
				return fmt.Errorf("replacing restaurant %s: %w", r.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, insertArgs(r)...); err != nil {
			return fmt.Errorf("inserting restaurant %q: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]models.Restaurant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.Restaurant{}
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRestaurant(row rowScanner) (models.Restaurant, error) {
	var r models.Restaurant
	var lon, lat float64
	err := row.Scan(&r.ID, &r.Name, &r.Cuisines, &r.Location.Address, &r.Location.City, &lon, &lat,
		&r.AverageCostForTwo, &r.PriceRange, &r.UserRating.AggregateRating, &r.UserRating.RatingText,
		&r.UserRating.Votes, &r.FeaturedImage, &r.MenuURL)
	if err != nil {
		return r, err
	}
	r.Location = models.NewPoint(lon, lat, r.Location.Address, r.Location.City)
	return r, nil
}

func insertArgs(r models.Restaurant) []interface{} {
	return []interface{}{
		sql.NullString{String: r.ID, Valid: r.ID != ""},
		r.Name, r.Cuisines, r.Location.Address, r.Location.City,
		r.Location.Longitude(), r.Location.Latitude(),
		r.AverageCostForTwo, r.PriceRange,
		r.UserRating.AggregateRating, r.UserRating.RatingText, r.UserRating.Votes,
		r.FeaturedImage, r.MenuURL,
	}
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func buildListQuery(limit, offset int) (string, []interface{}) {
	query := "SELECT " + selectFields + " FROM restaurants r ORDER BY r.pk" + limitClause(limit)
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}
	return query, nil
}

func buildNearbyQuery(longitude, latitude, maxMeters float64, limit int) (string, []interface{}) {
	point := "ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography"
	query := fmt.Sprintf(`
		SELECT %s FROM restaurants r
		WHERE ST_DWithin(r.geo, %s, $3)
		ORDER BY ST_Distance(r.geo, %s) ASC, r.pk ASC%s
	`, selectFields, point, point, limitClause(limit))
	return query, []interface{}{longitude, latitude, maxMeters}
}

func buildCuisineQuery(term string, limit int) (string, []interface{}) {
	query := "SELECT " + selectFields + ` FROM restaurants r WHERE r.cuisines ILIKE $1 ESCAPE '\' ORDER BY r.pk` + limitClause(limit)
	return query, []interface{}{"%" + escapeLike(term) + "%"}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside an ILIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
