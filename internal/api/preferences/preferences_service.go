package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) (*types.UserPreferences, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
}

func NewServiceImpl(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// GetPreferences falls back to defaults when the user has none stored.
func (s *ServiceImpl) GetPreferences(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	ctx, span := otel.Tracer("PreferencesService").Start(ctx, "GetPreferences", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		span.SetAttributes(attribute.Bool("preferences.default", true))
		span.SetStatus(codes.Ok, "")
		return types.DefaultPreferences(userID), nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return p, nil
}

func (s *ServiceImpl) UpdatePreferences(ctx context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) (*types.UserPreferences, error) {
	ctx, span := otel.Tracer("PreferencesService").Start(ctx, "UpdatePreferences", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if params.PreferredPriceRange != nil {
		normalized := types.NormalizePrice(*params.PreferredPriceRange)
		if normalized == "" {
			return nil, types.NewValidationError("preferred_price_range", "must be one of $, $$, $$$, $$$$")
		}
		params.PreferredPriceRange = &normalized
	}

	current, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	params.Apply(current)

	saved, err := s.repo.Upsert(ctx, *current)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	s.logger.InfoContext(ctx, "User preferences updated", slog.String("user_id", userID.String()))
	span.SetStatus(codes.Ok, "")
	return saved, nil
}
