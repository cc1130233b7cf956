package restaurant

import (
	"log/slog"
	"strings"

	database "github.com/FACorreiaa/munchmate-api/app/db"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// NewStore returns the Postgres-backed cache store unless the memory driver is
// selected or no pool is available.
func NewStore(driver string, pgpool database.DBTX, logger *slog.Logger) Repository {
	if strings.EqualFold(driver, DriverMemory) || pgpool == nil {
		logger.Info("Using in-memory restaurant cache store")
		return NewMemoryRepository(logger)
	}
	return NewRepository(pgpool, logger)
}
