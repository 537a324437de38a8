// FILE: internal/scheduler/renewal_scheduler.go
// Periodic trigger for the auto-renewal job, guarded by a Redis lock across replicas
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sales-offers-billing/internal/pkg/logger"
	"sales-offers-billing/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const renewalLockKey = "billing:renewal:lock"

// releaseScript deletes the lock only if this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RenewalScheduler struct {
	cron     *cron.Cron
	renewals service.RenewalService
	rdb      *redis.Client
	logger   logger.ILogger
	interval time.Duration
	lockTTL  time.Duration

	mu      sync.Mutex
	running bool
}

// NewRenewalScheduler builds a scheduler. rdb may be nil, in which case every tick runs
// without a lock.
func NewRenewalScheduler(renewals service.RenewalService, rdb *redis.Client, log logger.ILogger, interval, lockTTL time.Duration) *RenewalScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &RenewalScheduler{
		cron:     cron.New(),
		renewals: renewals,
		rdb:      rdb,
		logger:   log,
		interval: interval,
		lockTTL:  lockTTL,
	}
}

func (s *RenewalScheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule renewal job: %w", err)
	}
	s.cron.Start()
	s.logger.Info(logger.ModuleRenewal, "Renewal scheduler started", map[string]interface{}{"interval": s.interval.String()})
	return nil
}

// Stop waits for a tick in progress to finish.
func (s *RenewalScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Tick runs one renewal pass unless another pass holds the lock. The returned bool
// reports whether the pass ran.
func (s *RenewalScheduler) Tick(ctx context.Context) (service.RenewalReport, bool) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return service.RenewalReport{}, false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	release, acquired := s.acquire(ctx)
	if !acquired {
		s.logger.Debug(logger.ModuleRenewal, "Renewal lock held elsewhere, skipping tick", nil)
		return service.RenewalReport{}, false
	}
	defer release()

	return s.renewals.RunOnce(ctx), true
}

func (s *RenewalScheduler) acquire(ctx context.Context) (func(), bool) {
	if s.rdb == nil {
		return func() {}, true
	}

	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, renewalLockKey, token, s.lockTTL).Result()
	if err != nil {
		// A pending renewal payment blocks a second charge for the same subscription
		s.logger.Warn(logger.ModuleRenewal, "Redis unavailable, running renewal without lock", map[string]interface{}{"error": err.Error()})
		return func() {}, true
	}
	if !ok {
		return nil, false
	}

	return func() {
		if err := releaseScript.Run(context.Background(), s.rdb, []string{renewalLockKey}, token).Err(); err != nil && err != redis.Nil {
			s.logger.Warn(logger.ModuleRenewal, "Failed to release renewal lock", map[string]interface{}{"error": err.Error()})
		}
	}, true
}
