package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/munchmate-api/app/db"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const pgUniqueViolation = "23505"

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	// CreateUser stores the user and its initial preferences atomically.
	// A taken email or provider identity yields ErrConflict.
	CreateUser(ctx context.Context, user types.UserAuth, prefs types.UserPreferences) (*types.UserAuth, error)
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (*types.UserAuth, error)
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

const userColumns = `id, first_name, last_name, email, COALESCE(password_hash, ''), provider, provider_id, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*types.UserAuth, error) {
	var u types.UserAuth
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Provider, &u.ProviderID, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *RepositoryImpl) CreateUser(ctx context.Context, user types.UserAuth, prefs types.UserPreferences) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("user.provider", user.Provider),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rbErr))
		}
	}()

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	created, err := scanUser(tx.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, email, password_hash, provider, provider_id, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		user.FirstName, user.LastName, strings.ToLower(user.Email), passwordHash,
		user.Provider, user.ProviderID, user.AvatarURL,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			span.SetStatus(codes.Error, "conflict")
			return nil, fmt.Errorf("user already exists: %w", types.ErrConflict)
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_preferences (user_id, liked_foods, disliked_foods, favorite_cuisines, preferred_price_range, dietary_restrictions)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		created.ID, nonNil(prefs.LikedFoods), nonNil(prefs.DislikedFoods), nonNil(prefs.FavoriteCuisines),
		prefs.PreferredPriceRange, nonNil(prefs.DietaryRestrictions),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert default preferences", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("failed to create user preferences: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", created.ID.String()))
	span.SetStatus(codes.Ok, "")
	return created, nil
}

func (r *RepositoryImpl) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	u, err := scanUser(r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
	return r.userResult(ctx, span, u, err)
}

func (r *RepositoryImpl) GetUserByProvider(ctx context.Context, provider, providerID string) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByProvider", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("user.provider", provider),
	))
	defer span.End()

	u, err := scanUser(r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`, provider, providerID))
	return r.userResult(ctx, span, u, err)
}

func (r *RepositoryImpl) userResult(ctx context.Context, span trace.Span, u *types.UserAuth, err error) (*types.UserAuth, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "not found")
		return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return u, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// PreferencesWriter receives the initial preferences of users created by MemoryRepository.
type PreferencesWriter func(ctx context.Context, prefs types.UserPreferences) error

var _ Repository = (*MemoryRepository)(nil)

type MemoryRepository struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]types.UserAuth
	savePrefs PreferencesWriter
}

func NewMemoryRepository(savePrefs PreferencesWriter) *MemoryRepository {
	return &MemoryRepository{
		users:     make(map[uuid.UUID]types.UserAuth),
		savePrefs: savePrefs,
	}
}

func (m *MemoryRepository) CreateUser(ctx context.Context, user types.UserAuth, prefs types.UserPreferences) (*types.UserAuth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, fmt.Errorf("user already exists: %w", types.ErrConflict)
		}
		if user.ProviderID != nil && u.ProviderID != nil && u.Provider == user.Provider && *u.ProviderID == *user.ProviderID {
			return nil, fmt.Errorf("user already exists: %w", types.ErrConflict)
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	prefs.UserID = user.ID
	if m.savePrefs != nil {
		if err := m.savePrefs(ctx, prefs); err != nil {
			return nil, fmt.Errorf("failed to create user preferences: %w", err)
		}
	}
	m.users[user.ID] = user
	return &user, nil
}

func (m *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*types.UserAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
}

func (m *MemoryRepository) GetUserByProvider(_ context.Context, provider, providerID string) (*types.UserAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID != nil && *u.ProviderID == providerID {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
}
