package restaurant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/munchmate-api/app/observability/metrics"
	"github.com/FACorreiaa/munchmate-api/internal/api/yelp"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const defaultBackgroundTimeout = 15 * time.Second

var _ Service = (*ServiceImpl)(nil)

// Service is the cache-first restaurant lookup.
type Service interface {
	GetRestaurant(ctx context.Context, id string) (*types.Restaurant, error)
	GetCachedRestaurant(ctx context.Context, id string) (*types.Restaurant, error)
	GetRestaurantsByIDs(ctx context.Context, ids []string) ([]types.Restaurant, error)
	SearchRestaurants(ctx context.Context, params types.SearchParams) ([]types.Restaurant, error)
	SaveRestaurants(ctx context.Context, restaurants []types.Restaurant) (*types.SaveRestaurantsResponse, error)
}

type ServiceImpl struct {
	logger            *slog.Logger
	repo              Repository
	client            yelp.Client
	freshness         time.Duration
	backgroundTimeout time.Duration
	now               func() time.Time
	group             singleflight.Group
	background        sync.WaitGroup
}

type Option func(*ServiceImpl)

func WithFreshness(d time.Duration) Option {
	return func(s *ServiceImpl) {
		if d > 0 {
			s.freshness = d
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

func WithClock(now func() time.Time) Option {
	return func(s *ServiceImpl) { s.now = now }
}

func NewServiceImpl(repo Repository, client yelp.Client, logger *slog.Logger, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		logger:            logger,
		repo:              repo,
		client:            client,
		freshness:         types.CacheDuration,
		backgroundTimeout: defaultBackgroundTimeout,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRestaurant serves a fresh cached record, otherwise fetches from the
// provider and writes it back. If the provider fails, a stale cached record is
// returned instead; without one the *types.UpstreamError is returned.
func (s *ServiceImpl) GetRestaurant(ctx context.Context, id string) (*types.Restaurant, error) {
	ctx, span := otel.Tracer("RestaurantService").Start(ctx, "GetRestaurant", trace.WithAttributes(
		attribute.String("restaurant.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GetRestaurant"), slog.String("restaurant_id", id))
	m := metrics.Get()

	id = strings.TrimSpace(id)
	if id == "" {
		span.SetStatus(codes.Error, "missing id")
		return nil, types.NewValidationError("id", "restaurant id is required")
	}

	cached, err := s.repo.GetRestaurant(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "Cache read failed, treating as miss", slog.Any("error", err))
		cached = nil
	}
	if cached != nil && cached.IsFresh(s.now(), s.freshness) {
		m.CacheHitsTotal.Add(ctx, 1)
		span.SetAttributes(attribute.String("lookup.source", "cache"))
		span.SetStatus(codes.Ok, "")
		return cached, nil
	}
	m.CacheMissesTotal.Add(ctx, 1)

	v, err, _ := s.group.Do(id, func() (any, error) {
		return s.client.FetchByID(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		if cached != nil {
			m.StaleServedTotal.Add(ctx, 1)
			l.WarnContext(ctx, "Provider failed, serving stale cache",
				slog.Time("last_updated", cached.LastUpdated),
				slog.Any("error", err))
			span.SetAttributes(attribute.String("lookup.source", "stale"))
			span.SetStatus(codes.Ok, "degraded")
			return cached, nil
		}
		l.ErrorContext(ctx, "Provider failed and nothing is cached", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failed")
		return nil, err
	}

	rec, _ := v.(*types.Restaurant)
	if rec == nil {
		return nil, &types.UpstreamError{Provider: "yelp", Err: errors.New("empty response")}
	}
	fetched := *rec
	saved, err := s.repo.UpsertRestaurant(ctx, fetched)
	if err != nil {
		m.CacheWriteErrorsTotal.Add(ctx, 1)
		l.WarnContext(ctx, "Cache write failed after fetch", slog.Any("error", err))
		fetched.LastUpdated = s.now().UTC()
		span.SetStatus(codes.Ok, "cache write failed")
		return &fetched, nil
	}

	span.SetAttributes(attribute.String("lookup.source", "remote"))
	span.SetStatus(codes.Ok, "")
	return saved, nil
}

// GetCachedRestaurant reads the cache store only, regardless of freshness.
func (s *ServiceImpl) GetCachedRestaurant(ctx context.Context, id string) (*types.Restaurant, error) {
	return s.repo.GetRestaurant(ctx, id)
}

func (s *ServiceImpl) GetRestaurantsByIDs(ctx context.Context, ids []string) ([]types.Restaurant, error) {
	return s.repo.GetRestaurantsByIDs(ctx, ids)
}

// SearchRestaurants prefers live provider results and populates the cache in the
// background. Without an API key, or when the provider fails, it answers from
// fresh cached records instead.
func (s *ServiceImpl) SearchRestaurants(ctx context.Context, params types.SearchParams) ([]types.Restaurant, error) {
	ctx, span := otel.Tracer("RestaurantService").Start(ctx, "SearchRestaurants", trace.WithAttributes(
		attribute.String("search.location", params.Location),
		attribute.String("search.category", params.Category),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SearchRestaurants"))

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid params")
		return nil, err
	}

	if !s.client.Enabled() {
		l.InfoContext(ctx, "No provider key configured, using cached search")
		span.SetAttributes(attribute.String("search.source", "cache"))
		return s.cachedSearch(ctx, params), nil
	}

	results, err := s.client.Search(ctx, params)
	if err != nil {
		var validation *types.ValidationError
		if errors.As(err, &validation) {
			return nil, err
		}
		l.WarnContext(ctx, "Provider search failed, falling back to cache", slog.Any("error", err))
		span.SetAttributes(attribute.String("search.source", "cache_fallback"))
		return s.cachedSearch(ctx, params), nil
	}

	s.populateCache(ctx, results)

	span.SetAttributes(attribute.String("search.source", "remote"), attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// cachedSearch never fails; a store error yields an empty result.
func (s *ServiceImpl) cachedSearch(ctx context.Context, params types.SearchParams) []types.Restaurant {
	results, err := s.repo.QueryFresh(ctx, types.CacheQueryFromSearch(params, s.freshness))
	if err != nil {
		s.logger.WarnContext(ctx, "Cached search failed", slog.Any("error", err))
		return []types.Restaurant{}
	}
	return results
}

// populateCache upserts every record in a detached goroutine. Individual
// failures are logged and do not stop the batch.
func (s *ServiceImpl) populateCache(ctx context.Context, results []types.Restaurant) {
	if len(results) == 0 {
		return
	}
	batch := make([]types.Restaurant, len(results))
	copy(batch, results)

	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.backgroundTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		m := metrics.Get()
		failed := 0
		for _, r := range batch {
			if _, err := s.repo.UpsertRestaurant(bgCtx, r); err != nil {
				failed++
				m.CacheWriteErrorsTotal.Add(bgCtx, 1)
				s.logger.WarnContext(bgCtx, "Background cache write failed",
					slog.String("restaurant_id", r.ID), slog.Any("error", err))
			}
		}
		s.logger.DebugContext(bgCtx, "Background cache population finished",
			slog.Int("total", len(batch)), slog.Int("failed", failed))
	}()
}

// SaveRestaurants upserts the given records synchronously.
func (s *ServiceImpl) SaveRestaurants(ctx context.Context, restaurants []types.Restaurant) (*types.SaveRestaurantsResponse, error) {
	ctx, span := otel.Tracer("RestaurantService").Start(ctx, "SaveRestaurants", trace.WithAttributes(
		attribute.Int("restaurants.count", len(restaurants)),
	))
	defer span.End()

	if len(restaurants) == 0 {
		return nil, types.NewValidationError("restaurants", "at least one restaurant is required")
	}
	for i, r := range restaurants {
		if err := r.Validate(); err != nil {
			return nil, types.NewValidationError("restaurants", fmt.Sprintf("restaurant at index %d: %v", i, err))
		}
	}

	resp := &types.SaveRestaurantsResponse{}
	for _, r := range restaurants {
		if _, err := s.repo.UpsertRestaurant(ctx, r); err != nil {
			s.logger.WarnContext(ctx, "Failed to save restaurant", slog.String("restaurant_id", r.ID), slog.Any("error", err))
			resp.Failed = append(resp.Failed, r.ID)
			continue
		}
		resp.Saved++
	}
	if resp.Saved == 0 {
		err := &types.CacheError{Op: "save", Err: errors.New("no restaurants could be saved")}
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return resp, err
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Wait blocks until background cache writes finish or ctx is done.
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
