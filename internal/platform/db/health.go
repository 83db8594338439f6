package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Probe checks one storage backend. Stats may be nil.
type Probe struct {
	Backend string
	Ping    func(ctx context.Context) error
	Stats   func() any
}

// PostgresProbe probes the warehouse pool and reports its statistics.
func PostgresProbe(pool *pgxpool.Pool) Probe {
	return Probe{
		Backend: "postgres",
		Ping:    pool.Ping,
		Stats:   func() any { return GetPoolStats(pool) },
	}
}

// Check pings the backend and returns the status code and body of a health
// response.
func (p Probe) Check(ctx context.Context) (int, map[string]any) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	body := map[string]any{"backend": p.Backend}
	if p.Stats != nil {
		body["pool"] = p.Stats()
	}

	if err := p.Ping(ctx); err != nil {
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		return http.StatusServiceUnavailable, body
	}

	body["status"] = "healthy"
	return http.StatusOK, body
}

// HealthHandler returns a handler for the storage health check endpoint.
func HealthHandler(p Probe) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(p.Check(c.Request().Context()))
	}
}
