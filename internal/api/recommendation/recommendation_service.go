package recommendation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

// HistorySource returns a user's recently viewed restaurants, newest first.
type HistorySource interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]types.Restaurant, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Recommend(ctx context.Context, userID uuid.UUID, current []types.Restaurant) ([]types.Restaurant, error)
}

type ServiceImpl struct {
	logger  *slog.Logger
	history HistorySource
}

func NewServiceImpl(history HistorySource, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		history: history,
	}
}

// Recommend never calls the remote provider. A history failure is treated as a cold start.
func (s *ServiceImpl) Recommend(ctx context.Context, userID uuid.UUID, current []types.Restaurant) ([]types.Restaurant, error) {
	ctx, span := otel.Tracer("RecommendationService").Start(ctx, "Recommend", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("current.count", len(current)),
	))
	defer span.End()

	if len(current) == 0 {
		span.SetStatus(codes.Ok, "")
		return []types.Restaurant{}, nil
	}

	history, err := s.history.History(ctx, userID, types.HistoryLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "Could not load history, recommending without it",
			slog.String("user_id", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		history = nil
	}

	out := Recommend(history, current, types.MaxRecommendations)
	span.SetAttributes(
		attribute.Int("history.count", len(history)),
		attribute.Int("results.count", len(out)),
	)
	span.SetStatus(codes.Ok, "")
	return out, nil
}
