package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/munchmate-api/app/db"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	// Get returns ErrNotFound when the user has no stored preferences.
	Get(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
	Upsert(ctx context.Context, prefs types.UserPreferences) (*types.UserPreferences, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool database.DBTX
}

func NewRepository(pgpool database.DBTX, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) Get(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	ctx, span := otel.Tracer("PreferencesRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_preferences"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
		SELECT user_id, liked_foods, disliked_foods, favorite_cuisines,
		       preferred_price_range, dietary_restrictions, updated_at
		FROM user_preferences
		WHERE user_id = $1`

	var p types.UserPreferences
	err := r.pgpool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.LikedFoods,
		&p.DislikedFoods,
		&p.FavoriteCuisines,
		&p.PreferredPriceRange,
		&p.DietaryRestrictions,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, fmt.Errorf("user preferences not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query user preferences", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching preferences: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &p, nil
}

func (r *RepositoryImpl) Upsert(ctx context.Context, prefs types.UserPreferences) (*types.UserPreferences, error) {
	ctx, span := otel.Tracer("PreferencesRepo").Start(ctx, "Upsert", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "user_preferences"),
		attribute.String("db.user.id", prefs.UserID.String()),
	))
	defer span.End()

	query := `
		INSERT INTO user_preferences (
			user_id, liked_foods, disliked_foods, favorite_cuisines,
			preferred_price_range, dietary_restrictions, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			liked_foods = EXCLUDED.liked_foods,
			disliked_foods = EXCLUDED.disliked_foods,
			favorite_cuisines = EXCLUDED.favorite_cuisines,
			preferred_price_range = EXCLUDED.preferred_price_range,
			dietary_restrictions = EXCLUDED.dietary_restrictions,
			updated_at = NOW()
		RETURNING updated_at`

	out := prefs
	err := r.pgpool.QueryRow(ctx, query,
		prefs.UserID,
		nonNil(prefs.LikedFoods),
		nonNil(prefs.DislikedFoods),
		nonNil(prefs.FavoriteCuisines),
		prefs.PreferredPriceRange,
		nonNil(prefs.DietaryRestrictions),
	).Scan(&out.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert user preferences", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPSERT failed")
		return nil, fmt.Errorf("database error saving preferences: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Repository = (*MemoryRepository)(nil)

type MemoryRepository struct {
	mu    sync.RWMutex
	prefs map[uuid.UUID]types.UserPreferences
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{prefs: make(map[uuid.UUID]types.UserPreferences)}
}

func (m *MemoryRepository) Get(_ context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, fmt.Errorf("user preferences not found: %w", types.ErrNotFound)
	}
	return clonePrefs(p), nil
}

func (m *MemoryRepository) Upsert(_ context.Context, prefs types.UserPreferences) (*types.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefs.UpdatedAt = time.Now().UTC()
	m.prefs[prefs.UserID] = *clonePrefs(prefs)
	return clonePrefs(prefs), nil
}

func clonePrefs(p types.UserPreferences) *types.UserPreferences {
	p.LikedFoods = slices.Clone(nonNil(p.LikedFoods))
	p.DislikedFoods = slices.Clone(nonNil(p.DislikedFoods))
	p.FavoriteCuisines = slices.Clone(nonNil(p.FavoriteCuisines))
	p.DietaryRestrictions = slices.Clone(nonNil(p.DietaryRestrictions))
	return &p
}
