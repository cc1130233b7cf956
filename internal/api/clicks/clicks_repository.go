package clicks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/munchmate-api/app/db"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the append-only interaction log.
type Repository interface {
	RecordInteraction(ctx context.Context, in types.Interaction) (*types.Interaction, error)
	GetRecentRestaurantIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
	DeleteUserInteractions(ctx context.Context, userID uuid.UUID) error
}

type RepositoryImpl struct {
	pgpool database.DBTX
	logger *slog.Logger
}

func NewRepository(pgpool database.DBTX, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		pgpool: pgpool,
		logger: logger,
	}
}

func (r *RepositoryImpl) RecordInteraction(ctx context.Context, in types.Interaction) (*types.Interaction, error) {
	ctx, span := otel.Tracer("ClicksRepository").Start(ctx, "RecordInteraction", trace.WithAttributes(
		attribute.String("user.id", in.UserID.String()),
		attribute.String("restaurant.id", in.RestaurantID),
	))
	defer span.End()

	query := `
		INSERT INTO restaurant_clicks (user_id, restaurant_id, type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	out := in
	err := r.pgpool.QueryRow(ctx, query, in.UserID, in.RestaurantID, in.Type).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to record interaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database insert failed")
		return nil, fmt.Errorf("failed to record interaction: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &out, nil
}

// GetRecentRestaurantIDs returns distinct restaurant ids, most recently clicked first.
func (r *RepositoryImpl) GetRecentRestaurantIDs(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	ctx, span := otel.Tracer("ClicksRepository").Start(ctx, "GetRecentRestaurantIDs", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	query := `
		SELECT restaurant_id
		FROM restaurant_clicks
		WHERE user_id = $1
		GROUP BY restaurant_id
		ORDER BY MAX(created_at) DESC
		LIMIT $2`

	rows, err := r.pgpool.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query recent clicks", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database query failed")
		return nil, fmt.Errorf("failed to query recent clicks: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan click row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating click rows: %w", err)
	}

	span.SetAttributes(attribute.Int("results.count", len(ids)))
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

func (r *RepositoryImpl) DeleteUserInteractions(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("ClicksRepository").Start(ctx, "DeleteUserInteractions", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM restaurant_clicks WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete interactions", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database delete failed")
		return fmt.Errorf("failed to delete interactions: %w", err)
	}
	span.SetAttributes(attribute.Int64("rows.deleted", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return nil
}

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps the interaction log in process.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []types.Interaction
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (m *MemoryRepository) RecordInteraction(_ context.Context, in types.Interaction) (*types.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := in
	out.ID = uuid.New()
	out.CreatedAt = m.now().UTC()
	if n := len(m.events); n > 0 && !out.CreatedAt.After(m.events[n-1].CreatedAt) {
		out.CreatedAt = m.events[n-1].CreatedAt.Add(time.Microsecond)
	}
	m.events = append(m.events, out)
	return &out, nil
}

func (m *MemoryRepository) GetRecentRestaurantIDs(_ context.Context, userID uuid.UUID, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	ids := make([]string, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(ids) < limit; i-- {
		e := m.events[i]
		if e.UserID != userID {
			continue
		}
		if _, ok := seen[e.RestaurantID]; ok {
			continue
		}
		seen[e.RestaurantID] = struct{}{}
		ids = append(ids, e.RestaurantID)
	}
	return ids, nil
}

func (m *MemoryRepository) DeleteUserInteractions(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	for _, e := range m.events {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}
