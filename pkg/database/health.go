package database

import (
	"context"
	"database/sql"
	"time"
)

// PoolHealth is one probe of database connectivity plus connection pool
// pressure. The graph store surfaces the ping result through /health; the
// pool numbers are for operators chasing saturation.
type PoolHealth struct {
	Reachable  bool  `json:"reachable"`
	PingMillis int64 `json:"pingMs"`
	Open       int   `json:"open"`
	InUse      int   `json:"inUse"`
	Idle       int   `json:"idle"`
	WaitCount  int64 `json:"waitCount"`
	WaitMillis int64 `json:"waitMs"`
	MaxOpen    int   `json:"maxOpen"`
}

// Health pings the database and snapshots the pool. The error is the ping
// error; the returned PoolHealth is populated either way.
func Health(ctx context.Context, db *sql.DB) (*PoolHealth, error) {
	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return &PoolHealth{PingMillis: time.Since(start).Milliseconds()}, err
	}

	stats := db.Stats()
	return &PoolHealth{
		Reachable:  true,
		PingMillis: time.Since(start).Milliseconds(),
		Open:       stats.OpenConnections,
		InUse:      stats.InUse,
		Idle:       stats.Idle,
		WaitCount:  stats.WaitCount,
		WaitMillis: stats.WaitDuration.Milliseconds(),
		MaxOpen:    stats.MaxOpenConnections,
	}, nil
}
