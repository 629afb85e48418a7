package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"licensedesk/api/internal/repository"
	"licensedesk/api/internal/service"
	"licensedesk/api/internal/storage"
)

const (
	reaperLockKey = "jobs:lock:session_reaper"
	sweepLockKey  = "jobs:lock:icon_sweep"
	lockTTL       = 4 * time.Minute
)

// Scheduler runs background hygiene: purging expired session rows and
// removing icon objects no license type references anymore. Expired
// sessions are already rejected at read time, so the reaper only keeps
// the table from growing.
type Scheduler struct {
	cron         *cron.Cron
	sessions     *service.SessionStore
	licenseTypes *repository.LicenseTypeRepository
	icons        *storage.ObjectStore
	locks        *redis.Client
	log          zerolog.Logger
}

func NewScheduler(sessions *service.SessionStore, licenseTypes *repository.LicenseTypeRepository, icons *storage.ObjectStore, locks *redis.Client, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		sessions:     sessions,
		licenseTypes: licenseTypes,
		icons:        icons,
		locks:        locks,
		log:          log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */5 * * * *", s.reapSessions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.sweepIcons); err != nil { // nightly
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for in-flight jobs, up to a short grace period.
func (s *Scheduler) Stop() {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
	}
}

// acquireLock claims a short-lived redis lock so only one instance runs a
// job per tick. A redis outage fails open: running the hygiene jobs twice
// is harmless.
func (s *Scheduler) acquireLock(ctx context.Context, key string) bool {
	if s.locks == nil {
		return true
	}
	ok, err := s.locks.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("job lock unavailable")
		return true
	}
	return ok
}

func (s *Scheduler) reapSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if !s.acquireLock(ctx, reaperLockKey) {
		return
	}

	purged, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session reaper failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int64("purged", purged).Msg("expired sessions removed")
	}
}

func (s *Scheduler) sweepIcons() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if !s.acquireLock(ctx, sweepLockKey) {
		return
	}

	stored, err := s.icons.ListIcons(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("icon sweep list failed")
		return
	}
	referenced, err := s.licenseTypes.ListIconObjects(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("icon sweep query failed")
		return
	}

	wanted := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		wanted[key] = struct{}{}
	}

	var removed int
	for _, key := range stored {
		if _, ok := wanted[key]; ok {
			continue
		}
		if err := s.icons.RemoveIcon(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("object", key).Msg("orphan icon removal failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("orphan icons swept")
	}
}
