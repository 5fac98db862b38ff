package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/dashpin-lab/dashpin/internal/core/reporting"
	"github.com/dashpin-lab/dashpin/internal/core/storage"
)

// UserSource hands out profile snapshots that changed since the previous
// drain. The in-memory user model implements this; the scheduler only sees
// the boundary.
type UserSource interface {
	DirtyUsers() []reporting.User
}

// Scheduler periodically purges expired reporting rows and flushes dirty
// user snapshots. It is stateless: every tick is an independent best-effort
// call into the store.
type Scheduler struct {
	store         storage.ReportingStore
	users         UserSource // optional
	purgeInterval time.Duration
	saveInterval  time.Duration
}

// NewScheduler creates a retention scheduler. users may be nil when no
// profile source is wired in; snapshot flushing is then skipped entirely.
func NewScheduler(store storage.ReportingStore, users UserSource, purgeInterval, saveInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:         store,
		users:         users,
		purgeInterval: purgeInterval,
		saveInterval:  saveInterval,
	}
}

// Start runs the scheduler until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	purge := time.NewTicker(s.purgeInterval)
	defer purge.Stop()
	save := time.NewTicker(s.saveInterval)
	defer save.Stop()

	slog.Info("[Retention] Starting retention scheduler",
		"purge_interval", s.purgeInterval,
		"save_interval", s.saveInterval)

	for {
		select {
		case <-purge.C:
			s.store.PurgeOldReporting(ctx, time.Now())
		case <-save.C:
			s.flushUsers(ctx)
		case <-ctx.Done():
			slog.Info("[Retention] Stopping (context cancelled)")

			// Final flush so dirty profiles are not lost on shutdown.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.flushUsers(shutdownCtx)

			return nil
		}
	}
}

func (s *Scheduler) flushUsers(ctx context.Context) {
	if s.users == nil {
		return
	}
	users := s.users.DirtyUsers()
	if len(users) == 0 {
		return
	}
	s.store.SaveUsers(ctx, users)
}
