package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dashpin-lab/dashpin/internal/core/reporting"
)

// ErrDisabled is returned by strict operations when no backing store is
// configured. Best-effort operations never surface it; they no-op instead.
var ErrDisabled = errors.New("reporting storage disabled")

// ErrAcquireTimeout is returned when every pooled connection stays checked
// out past the acquisition timeout.
var ErrAcquireTimeout = errors.New("connection acquisition timed out")

// ReportingStore is the persistence contract consumed by the retention
// scheduler and the admin surface.
//
// SaveUsers, InsertReporting and PurgeOldReporting are best-effort: they
// absorb every storage failure and return as if they had completed, so the
// data path that produced the entries can never be blocked by a broken or
// absent database. ExecuteRaw is the one strict path: it is operator-invoked
// and silent failure there would hide maintenance mistakes.
type ReportingStore interface {
	Enabled() bool

	SaveUsers(ctx context.Context, users []reporting.User)
	InsertReporting(ctx context.Context, entries map[reporting.AggregationKey]*reporting.AggregationValue, graph reporting.GraphType)
	QueryReporting(ctx context.Context, sinceTs int64, limit int, graph reporting.GraphType) ([]reporting.Point, error)
	PurgeOldReporting(ctx context.Context, now time.Time)
	ExecuteRaw(ctx context.Context, stmt string) error
}
