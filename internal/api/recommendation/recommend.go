package recommendation

import (
	"slices"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

// Recommend picks at most limit records from current, ranked by rating.
// Records already in history are excluded. When history carries any category
// aliases, survivors must share at least one of them, compared exactly.
func Recommend(history, current []types.Restaurant, limit int) []types.Restaurant {
	if limit <= 0 || limit > types.MaxRecommendations {
		limit = types.MaxRecommendations
	}
	if len(current) == 0 {
		return []types.Restaurant{}
	}

	viewed := make(map[string]struct{}, len(history))
	aliases := make(map[string]struct{})
	for _, h := range history {
		viewed[h.ID] = struct{}{}
		for _, a := range h.Aliases() {
			aliases[a] = struct{}{}
		}
	}

	out := make([]types.Restaurant, 0, len(current))
	for _, r := range current {
		if _, seen := viewed[r.ID]; seen {
			continue
		}
		if len(aliases) > 0 && !sharesAlias(r, aliases) {
			continue
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b types.Restaurant) int {
		switch {
		case a.Rating > b.Rating:
			return -1
		case a.Rating < b.Rating:
			return 1
		default:
			return 0
		}
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sharesAlias(r types.Restaurant, aliases map[string]struct{}) bool {
	for _, a := range r.Aliases() {
		if _, ok := aliases[a]; ok {
			return true
		}
	}
	return false
}
