package metrics

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPoolStats snapshots a pgx pool.
func PgxPoolStats(pool *pgxpool.Pool) map[string]any {
	if pool == nil {
		return map[string]any{}
	}
	s := pool.Stat()
	return map[string]any{
		"total_conns":       s.TotalConns(),
		"acquired_conns":    s.AcquiredConns(),
		"idle_conns":        s.IdleConns(),
		"max_conns":         s.MaxConns(),
		"acquire_count":     s.AcquireCount(),
		"acquire_wait_ms":   s.AcquireDuration().Milliseconds(),
		"empty_acquire":     s.EmptyAcquireCount(),
		"canceled_acquires": s.CanceledAcquireCount(),
	}
}

// SQLDBStats snapshots a database/sql pool (the sqlx side).
func SQLDBStats(db *sql.DB) map[string]any {
	if db == nil {
		return map[string]any{}
	}
	s := db.Stats()
	return map[string]any{
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"max_open_connections": s.MaxOpenConnections,
		"wait_count":           s.WaitCount,
		"wait_duration_ms":     s.WaitDuration.Milliseconds(),
	}
}
