package restaurant

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-process cache store for local runs and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	items  map[string]types.Restaurant
	logger *slog.Logger
	now    func() time.Time
}

func NewMemoryRepository(logger *slog.Logger) *MemoryRepository {
	return &MemoryRepository{
		items:  make(map[string]types.Restaurant),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for stamping and freshness cutoffs.
func (m *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	m.now = now
	return m
}

func (m *MemoryRepository) GetRestaurant(_ context.Context, id string) (*types.Restaurant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	out := clone(r)
	return &out, nil
}

func (m *MemoryRepository) UpsertRestaurant(_ context.Context, r types.Restaurant) (*types.Restaurant, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stamp := m.now().UTC()
	if prev, ok := m.items[r.ID]; ok && !stamp.After(prev.LastUpdated) {
		stamp = prev.LastUpdated.Add(time.Microsecond)
	}

	stored := clone(r)
	if stored.Categories == nil {
		stored.Categories = []types.Category{}
	}
	if stored.Photos == nil {
		stored.Photos = []string{}
	}
	stored.Distance = nil
	stored.LastUpdated = stamp
	m.items[r.ID] = stored

	out := clone(stored)
	return &out, nil
}

func (m *MemoryRepository) QueryFresh(ctx context.Context, q types.CacheQuery) ([]types.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.CacheError{Op: "query", Err: err}
	}

	m.mu.RLock()
	now := m.now()
	maxAge := q.EffectiveMaxAge()
	results := []types.Restaurant{}
	for _, r := range m.items {
		if r.IsFresh(now, maxAge) && q.Matches(r) {
			results = append(results, clone(r))
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(results, func(a, b types.Restaurant) int {
		switch {
		case a.Rating != b.Rating:
			if a.Rating > b.Rating {
				return -1
			}
			return 1
		case a.ReviewCount != b.ReviewCount:
			return b.ReviewCount - a.ReviewCount
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	if limit := q.EffectiveLimit(); len(results) > limit {
		results = results[:limit]
	}

	m.logger.DebugContext(ctx, "Memory cache query", slog.Int("results", len(results)))
	return results, nil
}

func (m *MemoryRepository) GetRestaurantsByIDs(ctx context.Context, ids []string) ([]types.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.CacheError{Op: "get_many", Err: fmt.Errorf("memory store: %w", err)}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]types.Restaurant, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.items[id]; ok {
			results = append(results, clone(r))
		}
	}
	return results, nil
}

// clone copies every slice and pointer so stored records never alias caller memory.
func clone(r types.Restaurant) types.Restaurant {
	r.Categories = slices.Clone(r.Categories)
	r.Photos = slices.Clone(r.Photos)
	r.Price = clonePtr(r.Price)
	r.Coordinates.Latitude = clonePtr(r.Coordinates.Latitude)
	r.Coordinates.Longitude = clonePtr(r.Coordinates.Longitude)
	r.Distance = clonePtr(r.Distance)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
