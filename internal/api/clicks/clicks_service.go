package clicks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/app/observability/metrics"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const (
	defaultGuardTTL          = 10 * time.Minute
	defaultBackgroundTimeout = 15 * time.Second
)

// RestaurantLookup is the part of the restaurant service the tracker needs.
type RestaurantLookup interface {
	GetRestaurant(ctx context.Context, id string) (*types.Restaurant, error)
	GetCachedRestaurant(ctx context.Context, id string) (*types.Restaurant, error)
	GetRestaurantsByIDs(ctx context.Context, ids []string) ([]types.Restaurant, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	TrackClick(ctx context.Context, userID uuid.UUID, restaurantID, interactionType string) (*types.TrackClickResult, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]types.Restaurant, error)
	ClearHistory(ctx context.Context, userID uuid.UUID) error
}

type ServiceImpl struct {
	logger            *slog.Logger
	repo              Repository
	restaurants       RestaurantLookup
	inflight          *cache.Cache
	backgroundTimeout time.Duration
	background        sync.WaitGroup
}

type Option func(*ServiceImpl)

// WithGuardTTL sets how long a scheduled enrichment suppresses repeat fetches of the same id.
func WithGuardTTL(d time.Duration) Option {
	return func(s *ServiceImpl) {
		if d > 0 {
			s.inflight = cache.New(d, 2*d)
		}
	}
}

func WithBackgroundTimeout(d time.Duration) Option {
	return func(s *ServiceImpl) {
		if d > 0 {
			s.backgroundTimeout = d
		}
	}
}

func NewServiceImpl(repo Repository, restaurants RestaurantLookup, logger *slog.Logger, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		logger:            logger,
		repo:              repo,
		restaurants:       restaurants,
		inflight:          cache.New(defaultGuardTTL, 2*defaultGuardTTL),
		backgroundTimeout: defaultBackgroundTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackClick appends an interaction and, when the restaurant is not cached,
// schedules a best-effort fetch. The response never waits on that fetch.
func (s *ServiceImpl) TrackClick(ctx context.Context, userID uuid.UUID, restaurantID, interactionType string) (*types.TrackClickResult, error) {
	ctx, span := otel.Tracer("ClicksService").Start(ctx, "TrackClick", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("restaurant.id", restaurantID),
	))
	defer span.End()

	restaurantID = strings.TrimSpace(restaurantID)
	if userID == uuid.Nil {
		return nil, types.NewValidationError("user_id", "user id is required")
	}
	if restaurantID == "" {
		return nil, types.NewValidationError("restaurant_id", "restaurant id is required")
	}
	if interactionType = strings.TrimSpace(interactionType); interactionType == "" {
		interactionType = types.InteractionTypeRestaurant
	}

	recorded, err := s.repo.RecordInteraction(ctx, types.Interaction{
		UserID:       userID,
		RestaurantID: restaurantID,
		Type:         interactionType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed")
		return nil, fmt.Errorf("failed to track click: %w", err)
	}
	metrics.Get().ClicksRecordedTotal.Add(ctx, 1)

	enrichment := s.enrich(ctx, restaurantID)
	span.SetAttributes(attribute.String("enrichment", enrichment))
	span.SetStatus(codes.Ok, "")
	return &types.TrackClickResult{Interaction: *recorded, Enrichment: enrichment}, nil
}

func (s *ServiceImpl) enrich(ctx context.Context, restaurantID string) string {
	cached, err := s.restaurants.GetCachedRestaurant(ctx, restaurantID)
	if err != nil {
		s.logger.WarnContext(ctx, "Cache check failed before enrichment", slog.String("restaurant_id", restaurantID), slog.Any("error", err))
	}
	if cached != nil {
		return types.EnrichmentCached
	}
	if err := s.inflight.Add(restaurantID, struct{}{}, cache.DefaultExpiration); err != nil {
		return types.EnrichmentSkipped
	}

	metrics.Get().EnrichmentsTotal.Add(ctx, 1)
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.backgroundTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		if _, err := s.restaurants.GetRestaurant(bgCtx, restaurantID); err != nil {
			s.logger.WarnContext(bgCtx, "Click enrichment failed",
				slog.String("restaurant_id", restaurantID), slog.Any("error", err))
			return
		}
		s.logger.DebugContext(bgCtx, "Click enrichment cached restaurant", slog.String("restaurant_id", restaurantID))
	}()
	return types.EnrichmentScheduled
}

// History returns up to limit distinct restaurants the user viewed, newest first.
// Restaurants missing from the cache are left out.
func (s *ServiceImpl) History(ctx context.Context, userID uuid.UUID, limit int) ([]types.Restaurant, error) {
	ctx, span := otel.Tracer("ClicksService").Start(ctx, "History", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	if limit <= 0 || limit > types.HistoryLimit {
		limit = types.HistoryLimit
	}

	ids, err := s.repo.GetRecentRestaurantIDs(ctx, userID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history query failed")
		return nil, fmt.Errorf("failed to load click history: %w", err)
	}
	if len(ids) == 0 {
		return []types.Restaurant{}, nil
	}

	found, err := s.restaurants.GetRestaurantsByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Could not resolve history against cache", slog.Any("error", err))
		return []types.Restaurant{}, nil
	}
	byID := make(map[string]types.Restaurant, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	out := make([]types.Restaurant, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	span.SetAttributes(attribute.Int("results.count", len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (s *ServiceImpl) ClearHistory(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("ClicksService").Start(ctx, "ClearHistory")
	defer span.End()

	if err := s.repo.DeleteUserInteractions(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("failed to clear click history: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Wait blocks until scheduled enrichments finish or ctx is done.
func (s *ServiceImpl) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
