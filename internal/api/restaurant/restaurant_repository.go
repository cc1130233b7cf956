package restaurant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/munchmate-api/app/db"
	"github.com/FACorreiaa/munchmate-api/app/observability/metrics"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the restaurant cache store. Store failures are *types.CacheError;
// an absent record is (nil, nil).
type Repository interface {
	GetRestaurant(ctx context.Context, id string) (*types.Restaurant, error)
	UpsertRestaurant(ctx context.Context, r types.Restaurant) (*types.Restaurant, error)
	QueryFresh(ctx context.Context, q types.CacheQuery) ([]types.Restaurant, error)
	GetRestaurantsByIDs(ctx context.Context, ids []string) ([]types.Restaurant, error)
}

type RepositoryImpl struct {
	pgpool database.DBTX
	logger *slog.Logger
	now    func() time.Time
}

func NewRepository(pgpool database.DBTX, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		pgpool: pgpool,
		logger: logger,
		now:    time.Now,
	}
}

const restaurantColumns = `id, name, address, address1, city, state, zip_code, latitude, longitude,
	price, rating, review_count, categories, phone, url, image_url, photos, last_updated`

func scanRestaurant(row pgx.Row) (types.Restaurant, error) {
	var r types.Restaurant
	var categories []byte
	err := row.Scan(
		&r.ID, &r.Name, &r.Address,
		&r.Location.Address1, &r.Location.City, &r.Location.State, &r.Location.ZipCode,
		&r.Coordinates.Latitude, &r.Coordinates.Longitude,
		&r.Price, &r.Rating, &r.ReviewCount, &categories,
		&r.Phone, &r.URL, &r.ImageURL, &r.Photos, &r.LastUpdated,
	)
	if err != nil {
		return r, err
	}
	r.Categories = []types.Category{}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &r.Categories); err != nil {
			return r, fmt.Errorf("decode categories: %w", err)
		}
	}
	return r, nil
}

func (r *RepositoryImpl) observe(ctx context.Context, op string, start time.Time, err error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("table", "restaurants"), attribute.String("op", op))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (r *RepositoryImpl) GetRestaurant(ctx context.Context, id string) (*types.Restaurant, error) {
	ctx, span := otel.Tracer("RestaurantRepository").Start(ctx, "GetRestaurant", trace.WithAttributes(
		attribute.String("restaurant.id", id),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetRestaurant"))
	start := time.Now()

	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`
	rest, err := scanRestaurant(r.pgpool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		r.observe(ctx, "get", start, nil)
		span.SetStatus(codes.Ok, "not cached")
		return nil, nil
	}
	r.observe(ctx, "get", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to read restaurant", slog.String("id", id), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, &types.CacheError{Op: "get", Err: err}
	}

	span.SetStatus(codes.Ok, "")
	return &rest, nil
}

// UpsertRestaurant fully replaces the stored record. last_updated always moves
// forward, even when two writes land within the clock's resolution.
func (r *RepositoryImpl) UpsertRestaurant(ctx context.Context, rest types.Restaurant) (*types.Restaurant, error) {
	ctx, span := otel.Tracer("RestaurantRepository").Start(ctx, "UpsertRestaurant", trace.WithAttributes(
		attribute.String("restaurant.id", rest.ID),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpsertRestaurant"))

	if err := rest.Validate(); err != nil {
		return nil, err
	}

	categories := rest.Categories
	if categories == nil {
		categories = []types.Category{}
	}
	catJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, &types.CacheError{Op: "upsert", Err: fmt.Errorf("encode categories: %w", err)}
	}
	photos := rest.Photos
	if photos == nil {
		photos = []string{}
	}

	query := `
		INSERT INTO restaurants (` + restaurantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			address1 = EXCLUDED.address1,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			price = EXCLUDED.price,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			categories = EXCLUDED.categories,
			phone = EXCLUDED.phone,
			url = EXCLUDED.url,
			image_url = EXCLUDED.image_url,
			photos = EXCLUDED.photos,
			last_updated = GREATEST(EXCLUDED.last_updated, restaurants.last_updated + INTERVAL '1 microsecond')
		RETURNING last_updated`

	start := time.Now()
	var lastUpdated time.Time
	err = r.pgpool.QueryRow(ctx, query,
		rest.ID, rest.Name, rest.Address,
		rest.Location.Address1, rest.Location.City, rest.Location.State, rest.Location.ZipCode,
		rest.Coordinates.Latitude, rest.Coordinates.Longitude,
		rest.Price, rest.Rating, rest.ReviewCount, string(catJSON),
		rest.Phone, rest.URL, rest.ImageURL, photos, r.now().UTC(),
	).Scan(&lastUpdated)
	r.observe(ctx, "upsert", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to upsert restaurant", slog.String("id", rest.ID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database upsert failed")
		return nil, &types.CacheError{Op: "upsert", Err: err}
	}

	saved := rest
	saved.Categories = categories
	saved.Photos = photos
	saved.Distance = nil
	saved.LastUpdated = lastUpdated
	span.SetStatus(codes.Ok, "")
	return &saved, nil
}

func (r *RepositoryImpl) QueryFresh(ctx context.Context, q types.CacheQuery) ([]types.Restaurant, error) {
	ctx, span := otel.Tracer("RestaurantRepository").Start(ctx, "QueryFresh", trace.WithAttributes(
		attribute.String("query.category", q.Category),
		attribute.String("query.price", q.Price),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "QueryFresh"))

	cutoff := r.now().Add(-q.EffectiveMaxAge()).UTC()
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE last_updated > $1`
	args := []any{cutoff}

	if c := strings.TrimSpace(q.Category); c != "" {
		args = append(args, "%"+strings.ToLower(c)+"%")
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(categories) AS c
			WHERE LOWER(c->>'alias') LIKE $%d OR LOWER(c->>'title') LIKE $%d)`, len(args), len(args))
	}
	if q.Price != "" {
		args = append(args, q.Price)
		query += fmt.Sprintf(` AND price = $%d`, len(args))
	}
	if q.MinRating != nil {
		args = append(args, *q.MinRating)
		query += fmt.Sprintf(` AND rating >= $%d`, len(args))
	}
	if b := q.Box; b != nil {
		args = append(args, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
		n := len(args)
		query += fmt.Sprintf(` AND latitude BETWEEN $%d AND $%d AND longitude BETWEEN $%d AND $%d`, n-3, n-2, n-1, n)
	}
	args = append(args, q.EffectiveLimit())
	query += fmt.Sprintf(` ORDER BY rating DESC, review_count DESC, id LIMIT $%d`, len(args))

	l.DebugContext(ctx, "Executing cached restaurant query", slog.String("query", query), slog.Any("args", args))

	start := time.Now()
	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.observe(ctx, "query_fresh", start, err)
		l.ErrorContext(ctx, "Failed to query cached restaurants", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, &types.CacheError{Op: "query", Err: err}
	}
	defer rows.Close()

	results, err := collect(rows)
	r.observe(ctx, "query_fresh", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, &types.CacheError{Op: "query", Err: err}
	}

	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// GetRestaurantsByIDs returns the stored records for ids, ignoring unknown ones.
// Order is unspecified.
func (r *RepositoryImpl) GetRestaurantsByIDs(ctx context.Context, ids []string) ([]types.Restaurant, error) {
	ctx, span := otel.Tracer("RestaurantRepository").Start(ctx, "GetRestaurantsByIDs", trace.WithAttributes(
		attribute.Int("ids.count", len(ids)),
	))
	defer span.End()

	if len(ids) == 0 {
		return []types.Restaurant{}, nil
	}

	start := time.Now()
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = ANY($1)`
	rows, err := r.pgpool.Query(ctx, query, ids)
	if err != nil {
		r.observe(ctx, "get_many", start, err)
		r.logger.ErrorContext(ctx, "Failed to load restaurants by id", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, &types.CacheError{Op: "get_many", Err: err}
	}
	defer rows.Close()

	results, err := collect(rows)
	r.observe(ctx, "get_many", start, err)
	if err != nil {
		span.RecordError(err)
		return nil, &types.CacheError{Op: "get_many", Err: err}
	}
	span.SetStatus(codes.Ok, "")
	return results, nil
}

func collect(rows pgx.Rows) ([]types.Restaurant, error) {
	results := []types.Restaurant{}
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		results = append(results, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restaurants: %w", err)
	}
	return results, nil
}
