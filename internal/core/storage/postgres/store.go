package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dashpin-lab/dashpin/internal/core/config"
	"github.com/dashpin-lab/dashpin/internal/core/reporting"
	"github.com/dashpin-lab/dashpin/internal/core/storage"
	_ "github.com/lib/pq" // Register postgres driver
)

// Store implements storage.ReportingStore over a bounded PostgreSQL
// connection pool, or over nothing at all. A Store built from an empty
// database section, or one whose initial connect fails, is permanently
// disabled: every best-effort operation degrades to a silent no-op and the
// host process keeps running without durable reporting. The two states never
// transition into each other for the lifetime of the process.
type Store struct {
	db             *sql.DB // nil when disabled
	acquireTimeout time.Duration
}

// New builds a Store from the database configuration. It never fails:
// construction problems collapse into the disabled state, so the persistence
// layer cannot take its host down with it.
func New(cfg config.DatabaseConfig) *Store {
	if !cfg.Configured() {
		slog.Warn("[Reporting] No database configured. Reporting storage disabled.")
		return &Store{}
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		slog.Error("[Reporting] Not able to open database. Skipping.", "error", err)
		return &Store{}
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(0) // unlimited; the pool recycles broken connections itself

	slog.Info("[Reporting] Connecting to database...",
		"url", cfg.URL,
		"user", cfg.User,
		"pool_size", cfg.PoolSize)

	probeCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if _, err := db.ExecContext(probeCtx, cfg.ProbeQuery); err != nil {
		slog.Error("[Reporting] Not able to connect to database. Skipping.", "error", err)
		db.Close()
		return &Store{}
	}

	slog.Info("[Reporting] Connected to database successfully.")
	return &Store{db: db, acquireTimeout: cfg.ConnectTimeout}
}

// NewFromDB wraps an existing pool. Used by tests and by embedders that
// manage the pool themselves.
func NewFromDB(db *sql.DB, acquireTimeout time.Duration) *Store {
	return &Store{db: db, acquireTimeout: acquireTimeout}
}

// Enabled reports whether a backing pool exists. Never blocks.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// DB exposes the underlying pool so migrations and the health endpoint can
// share it. Returns nil when disabled.
func (s *Store) DB() *sql.DB {
	return s.db
}

// acquire checks one connection out of the bounded pool, waiting at most the
// acquisition timeout. The timeout bounds only the wait: once the connection
// is handed out, the batch on it runs to completion.
func (s *Store) acquire(ctx context.Context) (*sql.Conn, error) {
	if s.db == nil {
		return nil, storage.ErrDisabled
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.db.Conn(acquireCtx)
	if err != nil {
		// Pool exhaustion is only when our own acquisition deadline elapsed;
		// a dead caller context is the caller's condition, not the pool's.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, storage.ErrAcquireTimeout
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// run is the shared batch template: one connection, one transaction, one
// commit. The connection is released on every exit path, so no failure mode
// can leak pool capacity.
func (s *Store) run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// bestEffort runs fn through the same template but absorbs every failure.
// Reporting persistence is auxiliary; the only trace of a failed batch is
// the log line written here.
func (s *Store) bestEffort(ctx context.Context, op string, items int, fn func(tx *sql.Tx) error) {
	start := time.Now()
	if err := s.run(ctx, fn); err != nil {
		slog.Error("[Reporting] "+op+" failed", "error", err, "items", items, "elapsed", time.Since(start))
		return
	}
	slog.Info("[Reporting] "+op+" finished", "items", items, "elapsed", time.Since(start))
}

// SaveUsers upserts one row per user, keyed by username, last write wins on
// the serialized snapshot. No-op when the store is disabled or the batch is
// empty.
func (s *Store) SaveUsers(ctx context.Context, users []reporting.User) {
	if !s.Enabled() || len(users) == 0 {
		return
	}

	s.bestEffort(ctx, "Storing users", len(users), func(tx *sql.Tx) error {
		ps, err := tx.PrepareContext(ctx, queryUpsertUser)
		if err != nil {
			return fmt.Errorf("prepare user upsert: %w", err)
		}
		defer ps.Close()

		for _, user := range users {
			if _, err := ps.ExecContext(ctx, user.Name, user.JSON); err != nil {
				return fmt.Errorf("upsert user %s: %w", user.Name, err)
			}
		}
		return nil
	})
}

// InsertReporting writes one row per aggregation entry into the granularity's
// table: ts is derived as bucket index times the graph period, value is the
// entry's average. One prepared statement is reused across all rows and the
// batch commits once, so the hot path stays a single round of work per flush.
func (s *Store) InsertReporting(ctx context.Context, entries map[reporting.AggregationKey]*reporting.AggregationValue, graph reporting.GraphType) {
	if !s.Enabled() || len(entries) == 0 {
		return
	}

	s.bestEffort(ctx, "Storing "+graph.String()+" reporting", len(entries), func(tx *sql.Tx) error {
		ps, err := tx.PrepareContext(ctx, queriesByGraph[graph].insert)
		if err != nil {
			return fmt.Errorf("prepare %s insert: %w", graph, err)
		}
		defer ps.Close()

		for key, value := range entries {
			if _, err := ps.ExecContext(ctx,
				key.Owner,
				key.DashID,
				key.Pin,
				key.PinType.String(),
				key.TsMillis(graph),
				value.Average(),
			); err != nil {
				return fmt.Errorf("insert %s row for %s: %w", graph, key.Owner, err)
			}
		}
		return nil
	})
}

// QueryReporting reads rows with ts strictly greater than sinceTs, most
// recent first, capped at limit. Unlike the batch writers this path returns
// its error: callers need either the rows or the reason they are missing.
func (s *Store) QueryReporting(ctx context.Context, sinceTs int64, limit int, graph reporting.GraphType) ([]reporting.Point, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, queriesByGraph[graph].sel, sinceTs, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s reporting: %w", graph, err)
	}
	defer rows.Close()

	var points []reporting.Point
	for rows.Next() {
		var p reporting.Point
		if err := rows.Scan(&p.Ts, &p.Value); err != nil {
			return nil, fmt.Errorf("scan %s reporting row: %w", graph, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s reporting rows: %w", graph, err)
	}
	return points, nil
}

// PurgeOldReporting deletes rows past each granularity's retention window,
// all cutoffs inside one transaction so the tables stay consistent with each
// other. Granularities without a window (daily) are skipped.
func (s *Store) PurgeOldReporting(ctx context.Context, now time.Time) {
	if !s.Enabled() {
		return
	}

	start := time.Now()
	removed := make(map[reporting.GraphType]int64)

	err := s.run(ctx, func(tx *sql.Tx) error {
		for _, graph := range reporting.GraphTypes() {
			window := graph.Retention()
			if window == 0 {
				continue
			}

			cutoff := now.Add(-window).UnixMilli()
			res, err := tx.ExecContext(ctx, queriesByGraph[graph].del, cutoff)
			if err != nil {
				return fmt.Errorf("delete old %s rows: %w", graph, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("count deleted %s rows: %w", graph, err)
			}
			removed[graph] = n
		}
		return nil
	})
	if err != nil {
		slog.Error("[Reporting] Removing old reporting records failed", "error", err, "elapsed", time.Since(start))
		return
	}

	slog.Info("[Reporting] Removing old reporting records finished",
		"minute_rows", removed[reporting.GraphMinute],
		"hourly_rows", removed[reporting.GraphHourly],
		"elapsed", time.Since(start))
}

// ExecuteRaw runs one operator-supplied statement and commits it. This is
// the single strict path: maintenance mistakes must surface, so every
// failure propagates to the caller instead of being absorbed.
func (s *Store) ExecuteRaw(ctx context.Context, stmt string) error {
	return s.run(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement: %w", err)
		}
		return nil
	})
}

// Close releases the pool and makes further acquisition fail. Idempotent and
// safe to call on a store that was never enabled.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close reporting store: %w", err)
	}
	slog.Info("[Reporting] Store closed gracefully")
	return nil
}
