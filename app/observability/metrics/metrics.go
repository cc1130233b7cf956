package metrics

import (
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "MunchMate"

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	CacheHitsTotal          metric.Int64Counter
	CacheMissesTotal        metric.Int64Counter
	StaleServedTotal        metric.Int64Counter
	CacheWriteErrorsTotal   metric.Int64Counter
	UpstreamRequestsTotal   metric.Int64Counter
	UpstreamErrorsTotal     metric.Int64Counter
	UpstreamDurationSeconds metric.Float64Histogram
	DbQueryDurationSeconds  metric.Float64Histogram
	DbQueryErrorsTotal      metric.Int64Counter
	ClicksRecordedTotal     metric.Int64Counter
	EnrichmentsTotal        metric.Int64Counter
	ChatRequestsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the instruments once from the global MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		m := &AppMetrics{}
		var errs []error

		counter := func(name, desc, unit string) metric.Int64Counter {
			c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
			if err != nil {
				errs = append(errs, err)
			}
			return c
		}
		histogram := func(name, desc string) metric.Float64Histogram {
			h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
			if err != nil {
				errs = append(errs, err)
			}
			return h
		}

		m.CacheHitsTotal = counter("restaurant_cache_hits_total", "Fresh restaurant records served from the cache store", "{hit}")
		m.CacheMissesTotal = counter("restaurant_cache_misses_total", "Lookups that were absent or stale in the cache store", "{miss}")
		m.StaleServedTotal = counter("restaurant_stale_served_total", "Stale records served after an upstream failure", "{record}")
		m.CacheWriteErrorsTotal = counter("restaurant_cache_write_errors_total", "Best-effort cache writes that failed", "{error}")
		m.UpstreamRequestsTotal = counter("upstream_requests_total", "Requests issued to remote providers", "{request}")
		m.UpstreamErrorsTotal = counter("upstream_errors_total", "Remote provider requests that failed", "{error}")
		m.UpstreamDurationSeconds = histogram("upstream_duration_seconds", "Duration of remote provider requests in seconds")
		m.DbQueryDurationSeconds = histogram("db_query_duration_seconds", "Duration of database queries in seconds")
		m.DbQueryErrorsTotal = counter("db_query_errors_total", "Total number of database query errors", "{error}")
		m.ClicksRecordedTotal = counter("clicks_recorded_total", "Interaction events recorded", "{event}")
		m.EnrichmentsTotal = counter("click_enrichments_total", "Asynchronous restaurant enrichments scheduled from clicks", "{fetch}")
		m.ChatRequestsTotal = counter("chat_requests_total", "Conversational assistant requests", "{request}")

		if len(errs) > 0 {
			slog.Default().Error("Metrics: failed to create some instruments", slog.Any("error", errors.Join(errs...)))
		}
		appMetrics = m
	})
}

// Get returns the AppMetrics instance, initializing it on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
