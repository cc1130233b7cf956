package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/munchmate-api/app/observability/metrics"
	"github.com/FACorreiaa/munchmate-api/config"
	"github.com/FACorreiaa/munchmate-api/internal/types"
)

const (
	providerName     = "yelp"
	defaultBaseURL   = "https://api.yelp.com/v3"
	defaultTimeout   = 10 * time.Second
	defaultCategory  = "restaurants"
	defaultSortBy    = "best_match"
	maxPayloadLength = 4096
)

var _ Client = (*ClientImpl)(nil)

// Client is the remote business directory. It never writes to the cache.
type Client interface {
	Search(ctx context.Context, params types.SearchParams) ([]types.Restaurant, error)
	FetchByID(ctx context.Context, id string) (*types.Restaurant, error)
	Enabled() bool
}

type ClientImpl struct {
	logger        *slog.Logger
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	defaultRadius int
	defaultLimit  int
}

func NewClient(cfg config.YelpConfig, logger *slog.Logger) *ClientImpl {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	radius := cfg.DefaultRadius
	if radius <= 0 {
		radius = types.DefaultSearchRadius
	}
	limit := cfg.DefaultLimit
	if limit <= 0 || limit > types.MaxCachedResults {
		limit = types.MaxCachedResults
	}
	return &ClientImpl{
		logger:        logger,
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		defaultRadius: radius,
		defaultLimit:  limit,
	}
}

// Enabled reports whether an API key is configured.
func (c *ClientImpl) Enabled() bool {
	return c.apiKey != ""
}

func (c *ClientImpl) Search(ctx context.Context, params types.SearchParams) ([]types.Restaurant, error) {
	ctx, span := otel.Tracer("YelpClient").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("search.location", params.Location),
		attribute.String("search.category", params.Category),
	))
	defer span.End()

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid params")
		return nil, err
	}

	var resp searchResponse
	if err := c.get(ctx, "/businesses/search", c.searchQuery(params), &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	results := make([]types.Restaurant, 0, len(resp.Businesses))
	for _, b := range resp.Businesses {
		r := toRestaurant(b)
		if params.MinRating != nil && r.Rating < *params.MinRating {
			continue
		}
		results = append(results, r)
	}

	c.logger.DebugContext(ctx, "Yelp search completed",
		slog.Int("returned", len(resp.Businesses)),
		slog.Int("kept", len(results)))
	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

func (c *ClientImpl) FetchByID(ctx context.Context, id string) (*types.Restaurant, error) {
	ctx, span := otel.Tracer("YelpClient").Start(ctx, "FetchByID", trace.WithAttributes(
		attribute.String("restaurant.id", id),
	))
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, types.NewValidationError("id", "restaurant id is required")
	}

	var b business
	if err := c.get(ctx, "/businesses/"+url.PathEscape(id), nil, &b); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	r := toRestaurant(b)
	span.SetStatus(codes.Ok, "")
	return &r, nil
}

func (c *ClientImpl) searchQuery(p types.SearchParams) url.Values {
	q := url.Values{}

	category := strings.TrimSpace(p.Category)
	if category == "" {
		category = defaultCategory
	}
	q.Set("categories", category)

	radius := p.Radius
	if radius <= 0 {
		radius = c.defaultRadius
	}
	if radius > types.MaxSearchRadius {
		radius = types.MaxSearchRadius
	}
	q.Set("radius", strconv.Itoa(radius))

	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = defaultSortBy
	}
	q.Set("sort_by", sortBy)

	limit := p.Limit
	if limit <= 0 || limit > c.defaultLimit {
		limit = c.defaultLimit
	}
	q.Set("limit", strconv.Itoa(limit))

	if p.HasCoordinates() {
		q.Set("latitude", strconv.FormatFloat(*p.Latitude, 'f', -1, 64))
		q.Set("longitude", strconv.FormatFloat(*p.Longitude, 'f', -1, 64))
	} else {
		q.Set("location", strings.TrimSpace(p.Location))
	}
	if price := priceQuery(p.Price); price != "" {
		q.Set("price", price)
	}
	if term := strings.TrimSpace(p.Term); term != "" {
		q.Set("term", term)
	}
	return q
}

// get performs an authenticated GET and decodes a 2xx body into dst.
// Every failure is returned as *types.UpstreamError.
func (c *ClientImpl) get(ctx context.Context, path string, query url.Values, dst any) error {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("provider", providerName), attribute.String("path", endpointLabel(path)))
	start := time.Now()
	m.UpstreamRequestsTotal.Add(ctx, 1, attrs)
	defer func() {
		m.UpstreamDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	fail := func(err *types.UpstreamError) error {
		m.UpstreamErrorsTotal.Add(ctx, 1, attrs)
		c.logger.WarnContext(ctx, "Yelp request failed",
			slog.String("path", path),
			slog.Int("status", err.StatusCode),
			slog.Any("error", err.Err))
		return err
	}

	if !c.Enabled() {
		return fail(&types.UpstreamError{Provider: providerName, Err: errors.New("YELP_API_KEY is not configured")})
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(&types.UpstreamError{Provider: providerName, Err: fmt.Errorf("build request: %w", err)})
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(&types.UpstreamError{Provider: providerName, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxPayloadLength))
		return fail(&types.UpstreamError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Payload:    string(body),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fail(&types.UpstreamError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		})
	}
	return nil
}

func endpointLabel(path string) string {
	if strings.HasPrefix(path, "/businesses/search") {
		return "search"
	}
	return "business"
}
